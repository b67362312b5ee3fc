package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseByteRange_Normal(t *testing.T) {
	start, end, ok := ParseByteRange("bytes=0-499")
	assert.True(t, ok)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(499), end)
}

func TestParseByteRange_OpenEnded(t *testing.T) {
	start, end, ok := ParseByteRange("bytes=100-")
	assert.True(t, ok)
	assert.Equal(t, int64(100), start)
	assert.Equal(t, int64(-1), end)
}

func TestParseByteRange_SuffixRangeNotOk(t *testing.T) {
	_, _, ok := ParseByteRange("bytes=-500")
	assert.False(t, ok)
}

func TestParseByteRange_Malformed(t *testing.T) {
	_, _, ok := ParseByteRange("nonsense")
	assert.False(t, ok)
}

func TestParseSuffixRange(t *testing.T) {
	n, ok := ParseSuffixRange("bytes=-500")
	assert.True(t, ok)
	assert.Equal(t, int64(500), n)

	_, ok = ParseSuffixRange("bytes=0-499")
	assert.False(t, ok)
}
