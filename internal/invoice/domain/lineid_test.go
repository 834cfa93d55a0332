package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineIDs(t *testing.T) {
	ids := NewLineIDs([]string{"line-2", "", "dup", "dup", " line-1 "})

	got := []string{
		ids.Next("line-2", 1),
		ids.Next("", 2),
		ids.Next("dup", 3),
		ids.Next("dup", 4),
		ids.Next(" line-1 ", 5),
	}
	assert.Equal(t, []string{"line-2", "line-3", "dup", "line-4", "line-1"}, got)
}
