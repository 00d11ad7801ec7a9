package store

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Seq is the append position of an event in its store. It is the identifier
// indices and Source.Get use.
type Seq uint32

// Defaults applied to appended events.
const (
	SpecVersion     = "1.0"
	ContentTypeJSON = "application/json"
)

// Event is an immutable CloudEvents-shaped record. Events returned by a
// store are shared and must not be modified.
type Event struct {
	Seq             Seq
	ID              string
	Source          string
	SpecVersion     string
	Type            string
	Subject         string
	Time            time.Time
	DataContentType string
	Data            []byte
}

// IsJSON reports whether Data should be decoded as JSON: the content type
// is empty or a JSON media type.
func (e *Event) IsJSON() bool {
	if e.DataContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(e.DataContentType)
	if err != nil {
		return false
	}
	return mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// EventOption configures event creation.
type EventOption func(*Event)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(e *Event) {
		e.ID = id
	}
}

// WithSource sets the CloudEvents source.
func WithSource(source string) EventOption {
	return func(e *Event) {
		e.Source = source
	}
}

// WithTime sets a specific timestamp (default: time.Now()).
func WithTime(t time.Time) EventOption {
	return func(e *Event) {
		e.Time = t
	}
}

// WithDataContentType sets the payload media type. Payloads that are not
// JSON are exposed to queries as strings.
func WithDataContentType(contentType string) EventOption {
	return func(e *Event) {
		e.DataContentType = contentType
	}
}

// NewEvent creates an event of the given type and subject. A []byte or
// json.RawMessage payload is stored as is; anything else is encoded as
// JSON.
func NewEvent(eventType, subject string, payload any, opts ...EventOption) (*Event, error) {
	e := &Event{
		ID:          uuid.New().String(),
		SpecVersion: SpecVersion,
		Type:        eventType,
		Subject:     subject,
		Time:        time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}

	switch p := payload.(type) {
	case nil:
	case []byte:
		e.Data = p
	case json.RawMessage:
		e.Data = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		e.Data = data
		if e.DataContentType == "" {
			e.DataContentType = ContentTypeJSON
		}
	}
	return e, nil
}

// MustEvent is NewEvent for payloads that always encode, such as maps of
// plain values. It panics on error.
func MustEvent(eventType, subject string, payload any, opts ...EventOption) *Event {
	e, err := NewEvent(eventType, subject, payload, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// prepare validates e and returns the copy a store keeps, with defaults
// filled in.
func prepare(e *Event, seq Seq) (*Event, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if err := ValidateSubject(e.Subject); err != nil {
		return nil, err
	}

	stored := *e
	stored.Seq = seq
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.SpecVersion == "" {
		stored.SpecVersion = SpecVersion
	}
	if stored.Time.IsZero() {
		stored.Time = time.Now().UTC()
	}
	if e.Data != nil {
		stored.Data = make([]byte, len(e.Data))
		copy(stored.Data, e.Data)
	}
	return &stored, nil
}

// ValidateSubject checks a subject path: it must not start or end with a
// slash or contain empty segments. The empty subject is the root.
func ValidateSubject(subject string) error {
	if subject == "" {
		return nil
	}
	if strings.HasPrefix(subject, "/") {
		return fmt.Errorf("%w: %q starts with '/'", ErrIllegalSubject, subject)
	}
	for _, segment := range strings.Split(subject, "/") {
		if segment == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrIllegalSubject, subject)
		}
	}
	return nil
}
