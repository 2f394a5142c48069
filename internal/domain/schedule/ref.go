package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SourceKind tags which store an occurrence came from.
type SourceKind string

const (
	SourceRecurring SourceKind = "recurring"
	SourceOneOff    SourceKind = "oneoff"
)

var ErrInvalidRef = errors.New("invalid occurrence reference, expected recurring:<id> or oneoff:<id>")

// OccurrenceRef points at exactly one schedule source row. Its text form
// ("recurring:12", "oneoff:5") is what the API and the booking table carry.
type OccurrenceRef struct {
	Kind SourceKind
	ID   int64
}

func RecurringRef(id int64) OccurrenceRef { return OccurrenceRef{Kind: SourceRecurring, ID: id} }
func OneOffRef(id int64) OccurrenceRef    { return OccurrenceRef{Kind: SourceOneOff, ID: id} }

func (r OccurrenceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func (r OccurrenceRef) Valid() bool {
	return (r.Kind == SourceRecurring || r.Kind == SourceOneOff) && r.ID > 0
}

func ParseOccurrenceRef(s string) (OccurrenceRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return OccurrenceRef{}, ErrInvalidRef
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return OccurrenceRef{}, ErrInvalidRef
	}
	ref := OccurrenceRef{Kind: SourceKind(kind), ID: n}
	if !ref.Valid() {
		return OccurrenceRef{}, ErrInvalidRef
	}
	return ref, nil
}

func (r OccurrenceRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *OccurrenceRef) UnmarshalText(b []byte) error {
	ref, err := ParseOccurrenceRef(string(b))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
