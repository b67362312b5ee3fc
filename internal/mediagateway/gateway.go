// Package mediagateway exposes a STORED archive entry as a virtual
// random-access file over HTTP, translating Range requests expressed
// relative to the entry into absolute byte ranges in the enclosing
// archive (spec.md §4.5). Grounded in the teacher's shared.ProxyResponse
// header-copying and status-preservation style, minus the qBittorrent
// partial-download pacing this engine has no equivalent of: a ZIP's
// bytes at a given absolute offset are either present or they are not.
package mediagateway

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/remotezip/remotezip/core"
	"github.com/remotezip/remotezip/internal/bytesource"
	"github.com/remotezip/remotezip/internal/httpx"
	"github.com/remotezip/remotezip/internal/logger"
)

var log = logger.Scoped("mediagateway")

const cacheControlImmutable = "max-age=3600, immutable"

// Stream serves src's bytes in [dataStart, dataEndInclusive] as a single
// virtual file of size V = dataEndInclusive - dataStart + 1, honoring an
// inbound Range header expressed relative to that virtual file.
func Stream(w http.ResponseWriter, r *http.Request, src bytesource.ByteSource, dataStart, dataEndInclusive int64, mimeType string) error {
	virtualSize := dataEndInclusive - dataStart + 1
	if virtualSize < 0 {
		virtualSize = 0
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", cacheControlImmutable)
	if mimeType != "" {
		w.Header().Set("Content-Type", mimeType)
	}

	if virtualSize == 0 {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
		return nil
	}

	relStart, relEnd, ranged := parseRelativeRange(r.Header.Get("Range"), virtualSize)

	absStart := dataStart + relStart
	absEnd := dataStart + relEnd

	data, err := src.ReadRange(absStart, absEnd)
	if err != nil {
		log.Error("range read failed", "error", err, "start", absStart, "end", absEnd)
		return core.NewError(core.ErrorCodeIo, "failed to read media range")
	}

	if ranged {
		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(relStart, 10)+"-"+strconv.FormatInt(relEnd, 10)+"/"+strconv.FormatInt(virtualSize, 10))
		w.Header().Set("Content-Length", strconv.FormatInt(int64(len(data)), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(virtualSize, 10))
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return nil
	}

	n, err := io.Copy(w, bytes.NewReader(data))
	log.Debug("streamed media range", "size", humanize.Bytes(uint64(n)), "ranged", ranged)
	return err
}

// parseRelativeRange resolves the Range header against a virtual file of
// size v, clamping out-of-bounds ends rather than rejecting them and
// treating a missing or malformed header as a full-file request (spec.md
// §4.5's boundary clamping rule).
func parseRelativeRange(rangeHeader string, v int64) (start, end int64, ranged bool) {
	if rangeHeader == "" {
		return 0, v - 1, false
	}

	if n, ok := httpx.ParseSuffixRange(rangeHeader); ok {
		start := v - n
		if start < 0 {
			start = 0
		}
		return start, v - 1, true
	}

	s, e, ok := httpx.ParseByteRange(rangeHeader)
	if !ok {
		return 0, v - 1, false
	}
	if s < 0 || s >= v {
		return 0, v - 1, false
	}
	if e < 0 || e >= v {
		e = v - 1
	}
	if e < s {
		return 0, v - 1, false
	}
	return s, e, true
}
