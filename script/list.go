package script

import (
	"github.com/pkg/errors"
)

// ErrExhausted is returned when the cursor would move past the last record of a
// list that does not loop.
var ErrExhausted = errors.New("scripted pose list exhausted")

// List is an immutable sequence of records with a forward-only cursor.
type List struct {
	records []Record
	cur     int
	loop    bool
}

// NewList returns a list positioned on its first record. When loop is set the
// cursor wraps to the start instead of reporting ErrExhausted.
func NewList(records []Record, loop bool) (*List, error) {
	if len(records) == 0 {
		return nil, errors.New("scripted pose list is empty")
	}
	return &List{records: append([]Record(nil), records...), loop: loop}, nil
}

// Current returns the record under the cursor.
func (l *List) Current() Record {
	return l.records[l.cur]
}

// Index returns the cursor position.
func (l *List) Index() int {
	return l.cur
}

// Len returns the number of records.
func (l *List) Len() int {
	return len(l.records)
}

// Advance moves the cursor one record forward. On a non-looping list the cursor
// stays on the last record and ErrExhausted is returned.
func (l *List) Advance() error {
	next := l.cur + 1
	if next >= len(l.records) {
		if !l.loop {
			return ErrExhausted
		}
		next = 0
	}
	l.cur = next
	return nil
}

// Seek positions the cursor on record i, used to resume a script part way.
func (l *List) Seek(i int) error {
	if i < 0 || i >= len(l.records) {
		return errors.Errorf("script index %d out of range [0, %d)", i, len(l.records))
	}
	l.cur = i
	return nil
}

// Records returns a copy of the underlying records.
func (l *List) Records() []Record {
	return append([]Record(nil), l.records...)
}
