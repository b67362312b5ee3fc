package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, int64(500<<20), p.ProxyMaxResponseSize)
	assert.Equal(t, int64(20<<20), p.RangeParseThreshold)
	assert.Equal(t, int64(25<<20), p.PreviewSizeLimit)
	assert.Equal(t, int64(100<<20), p.InBrowserDecompressionCeiling)
	assert.Equal(t, 5000, p.CodePreviewLineLimit)
	assert.Equal(t, int64(200<<20), p.ArchiveSizeConfirmThreshold)
	assert.Equal(t, 50, p.ArchiveEntryCountConfirmThreshold)
}

func TestLoad_GeneratesSecretWhenUnset(t *testing.T) {
	p, err := Load("")
	assert.NoError(t, err)
	assert.NotEmpty(t, p.ProxyLinkSecret)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REMOTEZIP_RANGE_PARSE_THRESHOLD", "1048576")
	p, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, int64(1048576), p.RangeParseThreshold)
}

func TestDefault_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		p := Default()
		assert.NotNil(t, p)
	})
}
