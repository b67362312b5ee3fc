// Package proxyclient implements the probe sequence that classifies a
// remote URL's range support (spec §4.2), and the HTTP relay that forwards
// requests to an origin the consumer's browser cannot reach directly
// because of CORS or a missing HEAD implementation. It is grounded in the
// teacher's internal/endpoint/proxy.go relay handlers and internal/shared's
// CreateProxyLink/UnwrapProxyLinkToken token scheme, generalized from
// debrid store links to arbitrary ZIP origin URLs.
package proxyclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/remotezip/remotezip/internal/bytesource"
)

// Capability is the probe outcome for one origin URL: its length and
// whether ranged reads are honored, plus which path (direct or proxy) the
// probe used to learn it.
type Capability struct {
	TotalSize      int64
	SupportsRanges bytesource.RangeSupport
	ViaProxy       bool
	ProbedAt       time.Time
}

// acceptsRangeBytes reports whether an Accept-Ranges header value lists
// "bytes", the way the teacher checks Accept-Ranges on probe responses.
func acceptsRangeBytes(v string) bool {
	for part := range strings.SplitSeq(v, ",") {
		if strings.TrimSpace(part) == "bytes" {
			return true
		}
	}
	return false
}

func contentLength(resp *http.Response) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
