package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	_, err := ulid.Parse(cid)
	require.NoError(t, err)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))

	same, again := EnsureCorrelationID(ctx)
	assert.Equal(t, cid, again)
	assert.Equal(t, cid, ExtractCorrelationID(same))

	assert.Equal(t, "", ExtractCorrelationID(ContextWithCorrelationID(context.Background(), "")))
}
