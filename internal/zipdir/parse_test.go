package zipdir

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotezip/remotezip/internal/bytesource"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParse_SmallArchive(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.txt":     "hello",
		"dir/b.txt": "world",
	})
	src := bytesource.NewBufferSource(data)

	dir, err := Parse(context.Background(), src, "")
	require.NoError(t, err)
	assert.Len(t, dir.Entries, 2)

	names := map[string]Entry{}
	for _, e := range dir.Entries {
		names[e.Path] = e
	}
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "dir/b.txt")
	assert.False(t, names["a.txt"].IsDirectory)
	assert.Equal(t, "a.txt", names["a.txt"].Name)
	assert.Equal(t, "b.txt", names["dir/b.txt"].Name)
}

func TestParse_NotAZip(t *testing.T) {
	src := bytesource.NewBufferSource([]byte("this is not a zip file at all"))
	_, err := Parse(context.Background(), src, "")
	assert.ErrorIs(t, err, ErrNotAZip)
}

func TestParse_EmptyArchive(t *testing.T) {
	data := buildZip(t, map[string]string{})
	src := bytesource.NewBufferSource(data)
	dir, err := Parse(context.Background(), src, "")
	require.NoError(t, err)
	assert.Len(t, dir.Entries, 0)
}

func TestParse_CoalescesConcurrentCalls(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "x"})
	src := bytesource.NewBufferSource(data)

	results := make(chan *Directory, 4)
	for i := 0; i < 4; i++ {
		go func() {
			dir, err := Parse(context.Background(), src, "same-key")
			assert.NoError(t, err)
			results <- dir
		}()
	}
	for i := 0; i < 4; i++ {
		dir := <-results
		assert.Len(t, dir.Entries, 1)
	}
}

func TestMsDosTimeToTime(t *testing.T) {
	tm := msDosTimeToTime(0x5621, 0x4A00)
	assert.Equal(t, 2023, tm.Year())
}
