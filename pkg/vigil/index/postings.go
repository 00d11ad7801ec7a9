package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Postings is an immutable-by-convention set of event sequence numbers.
type Postings struct {
	bm *roaring.Bitmap
}

// Empty returns an empty posting list.
func Empty() *Postings {
	return &Postings{bm: roaring.New()}
}

// Of builds postings from explicit sequence numbers.
func Of(seqs ...uint32) *Postings {
	return &Postings{bm: roaring.BitmapOf(seqs...)}
}

// Len returns the number of entries.
func (p *Postings) Len() int {
	return int(p.bm.GetCardinality())
}

// Contains reports whether seq is present.
func (p *Postings) Contains(seq uint32) bool {
	return p.bm.Contains(seq)
}

// And returns the intersection of p and other as new postings.
func (p *Postings) And(other *Postings) *Postings {
	return &Postings{bm: roaring.And(p.bm, other.bm)}
}

// Or returns the union of p and other as new postings.
func (p *Postings) Or(other *Postings) *Postings {
	return &Postings{bm: roaring.Or(p.bm, other.bm)}
}

// ToArray returns the entries in ascending order.
func (p *Postings) ToArray() []uint32 {
	return p.bm.ToArray()
}

// Iterator returns a pull iterator over the entries in ascending order,
// which is append order.
func (p *Postings) Iterator() *Iterator {
	return &Iterator{it: p.bm.Iterator()}
}

func (p *Postings) String() string {
	return fmt.Sprintf("postings(%d)", p.Len())
}

// Iterator pulls entries one at a time.
type Iterator struct {
	it roaring.IntPeekable
}

// Next returns the next entry, or false when exhausted.
func (it *Iterator) Next() (uint32, bool) {
	if !it.it.HasNext() {
		return 0, false
	}
	return it.it.Next(), true
}
