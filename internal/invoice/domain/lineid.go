package domain

import (
	"fmt"
	"strings"
)

// LineIDs hands out line item ids for imported rows. Explicit ids are kept on
// first use; blank or repeated ones become line-<n>, with n starting at the
// row position and bumped past every id already taken or still to come.
type LineIDs struct {
	reserved map[string]bool
	used     map[string]bool
}

// NewLineIDs reserves every explicit id of the batch up front.
func NewLineIDs(explicit []string) *LineIDs {
	l := &LineIDs{
		reserved: make(map[string]bool, len(explicit)),
		used:     make(map[string]bool, len(explicit)),
	}
	for _, id := range explicit {
		if id = strings.TrimSpace(id); id != "" {
			l.reserved[id] = true
		}
	}
	return l
}

// Next returns the id for the row at the 1-based position pos.
func (l *LineIDs) Next(id string, pos int) string {
	id = strings.TrimSpace(id)
	if id == "" || l.used[id] {
		for n := pos; ; n++ {
			id = fmt.Sprintf("line-%d", n)
			if !l.reserved[id] && !l.used[id] {
				break
			}
		}
	}
	l.used[id] = true
	return id
}
