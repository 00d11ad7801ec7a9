// Package index provides the type index and subject trie that the planner
// uses to narrow a query's candidate events.
//
// Both indices map keys to roaring bitmaps of event sequence numbers. The
// subject trie keeps two bitmaps per node: the events whose subject is
// exactly the node's path, and the events at or below it, so a subtree
// lookup costs one walk down the path.
package index

import (
	"slices"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// Reader is the read side of an index consumed by the planner and executor.
// Lookups of absent keys return empty postings, never an error.
type Reader interface {
	// LookupByType returns every event of the given type.
	LookupByType(eventType string) *Postings
	// LookupBySubject returns every event whose subject equals path or lies
	// below it. Leading and trailing slashes are ignored; "" is the root.
	LookupBySubject(path string) *Postings
	// LookupSubjectExact returns every event whose subject equals path.
	LookupSubjectExact(path string) *Postings
	// ScanAll returns every indexed event.
	ScanAll() *Postings
	// Types returns the distinct event types, sorted.
	Types() []string
	// Subjects returns every subject path in the trie, sorted.
	Subjects() []string
}

type subjectNode struct {
	children map[string]*subjectNode
	exact    *roaring.Bitmap
	subtree  *roaring.Bitmap
}

func newSubjectNode() *subjectNode {
	return &subjectNode{
		children: make(map[string]*subjectNode),
		exact:    roaring.New(),
		subtree:  roaring.New(),
	}
}

// Index is a concurrency-safe, append-only type and subject index.
// Lookups return private copies, so callers may keep and mutate them while
// the index keeps growing.
type Index struct {
	mu sync.RWMutex

	types   map[string]*roaring.Bitmap
	root    *subjectNode
	all     *roaring.Bitmap
	entries int
}

// New creates an empty index.
func New() *Index {
	return &Index{
		types: make(map[string]*roaring.Bitmap),
		root:  newSubjectNode(),
		all:   roaring.New(),
	}
}

// SplitSubject normalizes a subject path into its segments. Leading,
// trailing and repeated slashes are ignored.
func SplitSubject(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Add indexes one event.
func (idx *Index) Add(seq uint32, eventType, subject string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	bm, ok := idx.types[eventType]
	if !ok {
		bm = roaring.New()
		idx.types[eventType] = bm
	}
	bm.Add(seq)

	node := idx.root
	node.subtree.Add(seq)
	for _, segment := range SplitSubject(subject) {
		child, ok := node.children[segment]
		if !ok {
			child = newSubjectNode()
			node.children[segment] = child
		}
		node = child
		node.subtree.Add(seq)
	}
	node.exact.Add(seq)

	idx.all.Add(seq)
	idx.entries++
}

// Len returns the number of indexed events.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries
}

// LookupByType implements Reader.
func (idx *Index) LookupByType(eventType string) *Postings {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if bm, ok := idx.types[eventType]; ok {
		return &Postings{bm: bm.Clone()}
	}
	return Empty()
}

// find walks to the node for path. Caller holds the read lock.
func (idx *Index) find(path string) *subjectNode {
	node := idx.root
	for _, segment := range SplitSubject(path) {
		child, ok := node.children[segment]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// LookupBySubject implements Reader.
func (idx *Index) LookupBySubject(path string) *Postings {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if node := idx.find(path); node != nil {
		return &Postings{bm: node.subtree.Clone()}
	}
	return Empty()
}

// LookupSubjectExact implements Reader.
func (idx *Index) LookupSubjectExact(path string) *Postings {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if node := idx.find(path); node != nil {
		return &Postings{bm: node.exact.Clone()}
	}
	return Empty()
}

// ScanAll implements Reader.
func (idx *Index) ScanAll() *Postings {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return &Postings{bm: idx.all.Clone()}
}

// Types implements Reader.
func (idx *Index) Types() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	types := make([]string, 0, len(idx.types))
	for t := range idx.types {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Subjects implements Reader. Intermediate paths are included, so a single
// event under a/b/c contributes a, a/b and a/b/c.
func (idx *Index) Subjects() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	type item struct {
		path string
		node *subjectNode
	}
	queue := []item{{node: idx.root}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for name, child := range cur.node.children {
			path := name
			if cur.path != "" {
				path = cur.path + "/" + name
			}
			out = append(out, path)
			queue = append(queue, item{path: path, node: child})
		}
	}
	slices.Sort(out)
	return out
}
