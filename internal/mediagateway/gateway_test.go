package mediagateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/remotezip/remotezip/internal/bytesource"
)

func archiveWithEntry(entryData []byte, prefix, suffix int) (src bytesource.ByteSource, dataStart, dataEnd int64) {
	blob := make([]byte, 0, prefix+len(entryData)+suffix)
	blob = append(blob, make([]byte, prefix)...)
	blob = append(blob, entryData...)
	blob = append(blob, make([]byte, suffix)...)
	src = bytesource.NewBufferSource(blob)
	dataStart = int64(prefix)
	dataEnd = int64(prefix + len(entryData) - 1)
	return
}

func TestStream_FullFile(t *testing.T) {
	entry := []byte("0123456789")
	src, start, end := archiveWithEntry(entry, 4, 6)

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "text/plain")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "10", w.Header().Get("Content-Length"))
	require.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	require.Equal(t, entry, w.Body.Bytes())
}

func TestStream_RangedRequest(t *testing.T) {
	entry := []byte("0123456789")
	src, start, end := archiveWithEntry(entry, 4, 6)

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	r.Header.Set("Range", "bytes=2-4")
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "text/plain")
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, "bytes 2-4/10", w.Header().Get("Content-Range"))
	require.Equal(t, "3", w.Header().Get("Content-Length"))
	require.Equal(t, "234", w.Body.String())
}

func TestStream_RangeClampedBeyondEnd(t *testing.T) {
	entry := []byte("0123456789")
	src, start, end := archiveWithEntry(entry, 0, 0)

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	r.Header.Set("Range", "bytes=8-999")
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, "bytes 8-9/10", w.Header().Get("Content-Range"))
	require.Equal(t, "89", w.Body.String())
}

func TestStream_SuffixRange(t *testing.T) {
	entry := []byte("0123456789")
	src, start, end := archiveWithEntry(entry, 2, 2)

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	r.Header.Set("Range", "bytes=-3")
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, "bytes 7-9/10", w.Header().Get("Content-Range"))
	require.Equal(t, "789", w.Body.String())
}

func TestStream_MalformedRangeServesFullFile(t *testing.T) {
	entry := []byte("abcdef")
	src, start, end := archiveWithEntry(entry, 0, 0)

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	r.Header.Set("Range", "not-a-range")
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, entry, w.Body.Bytes())
}

func TestStream_HeadOmitsBody(t *testing.T) {
	entry := []byte("abcdef")
	src, start, end := archiveWithEntry(entry, 0, 0)

	r := httptest.NewRequest(http.MethodHead, "/media", nil)
	w := httptest.NewRecorder()

	err := Stream(w, r, src, start, end, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.Bytes())
}

func TestStream_ZeroLengthEntry(t *testing.T) {
	src := bytesource.NewBufferSource([]byte{1, 2, 3})

	r := httptest.NewRequest(http.MethodGet, "/media", nil)
	w := httptest.NewRecorder()

	err := Stream(w, r, src, 1, 0, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Header().Get("Content-Length"))
	require.Empty(t, w.Body.Bytes())
}
