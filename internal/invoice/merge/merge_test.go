package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPick(t *testing.T) {
	current := Ptr("old")

	assert.Equal(t, "new", *Pick(Ptr("new"), current))
	assert.Same(t, current, Pick(nil, current))
	assert.Nil(t, Pick[string](nil, nil))

	next := Ptr("x")
	got := Pick(next, current)
	*next = "mutated"
	assert.Equal(t, "x", *got)
}

func TestValueAndHelpers(t *testing.T) {
	assert.Equal(t, 3.5, Value(Ptr(3.5), 1.0))
	assert.Equal(t, 1.0, Value(nil, 1.0))
	assert.Equal(t, 0, Deref[int](nil))
	assert.Nil(t, NonEmpty(""))
	assert.Equal(t, "v", *NonEmpty("v"))
	assert.True(t, Any[string](nil, Ptr("x")))
	assert.False(t, Any[string](nil, nil))
}
