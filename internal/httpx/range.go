// Package httpx holds small HTTP plumbing shared by the proxy relay and the
// media gateway: range-header parsing, header forwarding, CORS, and base-URL
// reconstruction. The request-scoped context and JSON error envelope live in
// internal/server. Grounded in the teacher's internal/shared/http.go
// (parseByteRange, copyHeaders, ExtractRequestBaseURL).
package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

// ParseByteRange extracts start and end from a "bytes=START-END" Range
// header. end == -1 means unbounded ("bytes=100-"). ok is false for a
// suffix range ("bytes=-N") or a malformed header; callers must handle
// suffix ranges themselves since the end bound depends on total length.
func ParseByteRange(rangeHeader string) (start, end int64, ok bool) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	if idx := strings.Index(spec, ","); idx >= 0 {
		spec = spec[:idx]
	}
	if strings.HasPrefix(spec, "-") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	e := int64(-1)
	if len(parts) == 2 && parts[1] != "" {
		e, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	return s, e, true
}

// ParseSuffixRange extracts N from a "bytes=-N" suffix range header.
func ParseSuffixRange(rangeHeader string) (n int64, ok bool) {
	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	if !strings.HasPrefix(spec, "-") {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(spec, "-"), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CopyHeaders copies src into dest, optionally stripping client-IP-revealing
// headers the way the teacher's copyHeaders(stripIpHeaders=true) does when
// forwarding a request toward an origin.
func CopyHeaders(src, dest http.Header, stripIPHeaders bool) {
	for key, values := range src {
		if stripIPHeaders {
			switch strings.ToLower(key) {
			case "x-client-ip", "x-forwarded-for", "cf-connecting-ip", "true-client-ip",
				"x-real-ip", "x-cluster-client-ip", "x-forwarded", "forwarded-for", "forwarded":
				continue
			}
		}
		for _, v := range values {
			dest.Add(key, v)
		}
	}
}

func extractRequestScheme(r *http.Request) string {
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func extractRequestHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}

// BaseURL reconstructs this server's own externally visible base URL,
// honoring reverse-proxy forwarding headers, for building proxy link URLs.
func BaseURL(r *http.Request) string {
	return extractRequestScheme(r) + "://" + extractRequestHost(r)
}
