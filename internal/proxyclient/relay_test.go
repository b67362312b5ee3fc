package proxyclient

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/server"
)

func newTestRelayMux(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewRelay(config.Default()).AddEndpoints(mux)
	return server.WithRequestContext(mux)
}

func TestRelay_MissingURLIsBadRequest(t *testing.T) {
	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelay_InvalidURLIsBadRequest(t *testing.T) {
	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url=not-a-url", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelay_OptionsAdvertisesExactContract(t *testing.T) {
	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodOptions, "/v0/proxy", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Range", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Range-Support")
}

func TestRelay_ForwardsRangeVerbatim(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=2-5", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 2-5/10")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("2345"))
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL, nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
}

func TestRelay_StartEndOverridesInboundRange(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-2", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("abc"))
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL+"&start=0&end=2", nil)
	req.Header.Set("Range", "bytes=500-999")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())
}

func TestRelay_DownloadForcesPlain200(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-3/10")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("data"))
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL+"&start=0&end=3&download=file.bin", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "file.bin")
	assert.Empty(t, rec.Header().Get("Content-Range"))
}

func TestRelay_InflateDecodesRawDeflate(t *testing.T) {
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(compressed.Bytes())
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL+"&inflate=1&size=11", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
}

func TestRelay_UpstreamErrorMapsTo502(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRelay_HeadSynthesizesSizeHeaders(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "12")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodHead, "/v0/proxy?url="+origin.URL, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("X-File-Size"))
	assert.Equal(t, "true", rec.Header().Get("X-Range-Support"))
}

func TestRelay_MediaModeStreamsVirtualRange(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=2-7", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 2-7/20")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("567890"))
	}))
	defer origin.Close()

	mux := newTestRelayMux(t)
	req := httptest.NewRequest(http.MethodGet, "/v0/proxy?url="+origin.URL+"&media=1&start=2&end=7&type=video/mp4", nil)
	req.Header.Set("Range", "bytes=0-5")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "567890", rec.Body.String())
}
