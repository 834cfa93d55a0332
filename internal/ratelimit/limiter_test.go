package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	keys   []string
	tokens map[string]int
	err    error
}

func (f *fakeBucket) Allow(_ context.Context, key string, rate float64, burst int) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	if f.tokens == nil {
		f.tokens = map[string]int{}
	}
	left, ok := f.tokens[key]
	if !ok {
		left = burst
	}
	if left == 0 {
		return newResult(false, 0, rate, burst, time.Unix(0, 0)), nil
	}
	f.tokens[key] = left - 1
	return newResult(true, float64(left-1), rate, burst, time.Unix(0, 0)), nil
}

func TestWriteLimiterDisabled(t *testing.T) {
	var nilLimiter *WriteLimiter
	res, err := nilLimiter.AllowDocument(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	l := NewWriteLimiter(nil, 5, 5, nil)
	assert.False(t, l.Enabled())
	res, err = l.AllowDocument(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWriteLimiterPerDocument(t *testing.T) {
	bucket := &fakeBucket{}
	l := NewWriteLimiter(bucket, 1, 2, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.AllowDocument(ctx, "42")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.AllowDocument(ctx, "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	res, err = l.AllowDocument(ctx, "43")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "invoicedoc:document:writes:42", bucket.keys[0])
	assert.Equal(t, "invoicedoc:document:writes:43", bucket.keys[3])
}

func TestWriteLimiterFailsOpen(t *testing.T) {
	l := NewWriteLimiter(&fakeBucket{err: errors.New("connection refused")}, 1, 1, nil)

	res, err := l.AllowDocument(context.Background(), "42")
	assert.Error(t, err)
	assert.True(t, res.Allowed)
}

func TestNewWriteLimiterDefaultsBurst(t *testing.T) {
	assert.Equal(t, 1, NewWriteLimiter(&fakeBucket{}, 0.5, 0, nil).burst)
	assert.Equal(t, 4, NewWriteLimiter(&fakeBucket{}, 4, 0, nil).burst)
}

func TestNewResult(t *testing.T) {
	now := time.Unix(100, 0)

	res := newResult(true, 3.5, 2, 5, now)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, 5, res.Limit)
	assert.Zero(t, res.RetryAfter)
	assert.Equal(t, now.Add(750*time.Millisecond), res.ResetTime)

	res = newResult(false, 0.5, 2, 5, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, 250*time.Millisecond, res.RetryAfter)
}

func TestTokenBucketValidation(t *testing.T) {
	var unconfigured *TokenBucket
	_, err := unconfigured.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errUnconfigured)

	assert.ErrorIs(t, validateBucket("", 1, 1), errEmptyKey)
	assert.ErrorIs(t, validateBucket("k", 0, 1), errNonPositive)
	assert.ErrorIs(t, validateBucket("k", 1, 0), errNonPositive)
	assert.NoError(t, validateBucket("k", 1, 1))

	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
