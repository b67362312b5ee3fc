package bytesource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferSource_ReadRange(t *testing.T) {
	src := NewBufferSource([]byte("hello world"))
	assert.Equal(t, int64(11), src.Length())
	assert.Equal(t, RangeSupportYes, src.SupportsRanges())
	assert.False(t, src.IsProxied())

	got, err := src.ReadRange(0, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = src.ReadRange(6, 10)
	assert.NoError(t, err)
	assert.Equal(t, []byte("world"), got)
}

func TestBufferSource_OutOfBounds(t *testing.T) {
	src := NewBufferSource([]byte("short"))
	_, err := src.ReadRange(0, 100)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBufferSource_InvalidRange(t *testing.T) {
	src := NewBufferSource([]byte("short"))
	_, err := src.ReadRange(3, 1)
	assert.Error(t, err)
}

func TestBufferSource_DoesNotAliasSourceBytes(t *testing.T) {
	data := []byte("mutate me")
	src := NewBufferSource(data)
	got, err := src.ReadRange(0, 5)
	assert.NoError(t, err)
	got[0] = 'X'
	assert.Equal(t, byte('m'), data[0])
}
