package bytesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/remotezip/remotezip/internal/logger"
)

var log = logger.Scoped("bytesource/remote")

// Requester is the minimal client surface RemoteSource needs, matching the
// reference httprange.Requester shape so either *http.Client or a
// request-mutating wrapper (proxy rewriting, auth) can stand in.
type Requester interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteSource issues ranged HTTP GETs against a fixed URL. It is
// constructed already knowing its capability record (length and range
// support), which is the result of the ProxyClient probe sequence (§4.2) —
// RemoteSource itself performs no probing.
type RemoteSource struct {
	client   Requester
	url      string
	length   int64
	support  RangeSupport
	proxied  bool
	userAgent string
}

// NewRemoteSource builds a RemoteSource for url, already carrying the
// capability record the caller determined via probing.
func NewRemoteSource(client Requester, url string, length int64, support RangeSupport, proxied bool) *RemoteSource {
	return &RemoteSource{
		client:    client,
		url:       url,
		length:    length,
		support:   support,
		proxied:   proxied,
		userAgent: "Mozilla/5.0 (compatible; remotezip/1.0)",
	}
}

func (r *RemoteSource) Length() int64 { return r.length }

func (r *RemoteSource) SupportsRanges() RangeSupport { return r.support }

func (r *RemoteSource) IsProxied() bool { return r.proxied }

func (r *RemoteSource) ReadRange(start, endInclusive int64) ([]byte, error) {
	if r.support == RangeSupportNo {
		return nil, ErrRangeUnsupported
	}
	if r.length > 0 && endInclusive >= r.length {
		return nil, ErrOutOfBounds
	}

	req, err := http.NewRequest(http.MethodGet, r.url, nil)
	if err != nil {
		return nil, NewIoError("build request", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, endInclusive))
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, NewIoError("do request", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// fall through
	case http.StatusOK:
		// Server ignored the Range header entirely; discard without
		// draining the full body to avoid an unbounded transfer.
		log.Trace("range ignored by origin, treating as unsupported", "url", r.url)
		return nil, ErrRangeUnsupported
	default:
		return nil, NewIoError("unexpected status", fmt.Errorf("%s", resp.Status))
	}

	if total, ok := ParseContentRangeTotal(resp.Header.Get("Content-Range")); ok && total != r.length {
		r.length = total
	}

	want := endInclusive - start + 1
	buf := make([]byte, want)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, NewIoError("read body", err)
	}
	return buf[:n], nil
}

// FetchWithContext performs a ranged read honoring ctx cancellation, used by
// probe callers that need a bounded deadline without constructing a full
// RemoteSource first.
func FetchWithContext(ctx context.Context, client Requester, url string, start, endInclusive int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if endInclusive >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, endInclusive))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}
	return client.Do(req)
}

// ParseContentRangeTotal extracts the total length from a "bytes a-b/total"
// Content-Range value, used to back-fill Length() after a suffix-range read.
func ParseContentRangeTotal(v string) (int64, bool) {
	v = strings.TrimPrefix(v, "bytes ")
	idx := strings.LastIndex(v, "/")
	if idx < 0 || idx == len(v)-1 {
		return 0, false
	}
	totalStr := v[idx+1:]
	if totalStr == "*" {
		return 0, false
	}
	total, err := strconv.ParseInt(totalStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}
