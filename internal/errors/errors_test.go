package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := WrapDataError(ErrEmptyGroup, "collect", "group African")
	require.Error(t, err)

	assert.True(t, Is(err, ErrEmptyGroup))
	assert.Contains(t, err.Error(), "[data] collect: group African")

	typ, ok := TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeData, typ)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, ErrorTypeStorage, "get", "noop"))
}

func TestTypeOfThroughFmtWrap(t *testing.T) {
	inner := WrapNetworkError(ErrEmbeddingUnavailable, "embed", "provider down")
	outer := fmt.Errorf("image a.jpg: %w", inner)

	typ, ok := TypeOf(outer)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeNetwork, typ)
	assert.True(t, Is(outer, ErrEmbeddingUnavailable))

	_, ok = TypeOf(ErrNoFaceDetected)
	assert.False(t, ok)
}

func TestWithContext(t *testing.T) {
	se := NewValidationError("config", "bad threshold").WithContext("value", 3.2)
	assert.Equal(t, 3.2, se.Context["value"])
	assert.Equal(t, "[validation] config: bad threshold", se.Error())
}
