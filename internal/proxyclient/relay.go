package proxyclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/net/http/httpguts"

	"github.com/remotezip/remotezip/core"
	"github.com/remotezip/remotezip/internal/bytesource"
	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/httpx"
	"github.com/remotezip/remotezip/internal/mediagateway"
	"github.com/remotezip/remotezip/internal/server"
)

// Relay implements spec §6's proxy wire contract — `GET/HEAD /v0/proxy?url=`
// forwarding, plus an opaque signed-link mint/access pair as an additional
// sharing convenience — grounded in the teacher's handleProxyLinkAccess /
// handleProxifyLinks / AddProxyEndpoints shape.
type Relay struct {
	policy *config.Policy
	client *http.Client
}

func NewRelay(policy *config.Policy) *Relay {
	return &Relay{policy: policy, client: &http.Client{}}
}

// AddEndpoints registers the relay's routes on mux.
func (rl *Relay) AddEndpoints(mux *http.ServeMux) {
	withCors := httpx.Middleware(httpx.EnableCORS(rl.policy.AllowedOrigins))
	mux.HandleFunc("/v0/proxy", rl.handleProxy)
	mux.HandleFunc("/v0/proxy/link", withCors(rl.handleMint))
	mux.HandleFunc("/v0/proxy/link/{token}", withCors(rl.handleAccess))
	mux.HandleFunc("/v0/proxy/link/{token}/{filename}", withCors(rl.handleAccess))
}

// handleProxy implements GET/HEAD/OPTIONS /v0/proxy?url=<absolute-url>, the
// mandatory forwarding contract from spec §6. It manages its own CORS
// headers rather than the generic httpx.EnableCORS middleware since the
// OPTIONS response here is spec'd down to the exact header values.
func (rl *Relay) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		rl.serveProxyOptions(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		server.SendError(w, r, core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed"))
		return
	}
	httpx.SetAllowOrigin(w, r, rl.policy.AllowedOrigins)

	target := r.URL.Query().Get("url")
	if !isAbsoluteHTTPURL(target) {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing or invalid url"))
		return
	}

	if r.Method == http.MethodHead {
		rl.serveProxyHead(w, r, target)
		return
	}
	rl.serveProxyGet(w, r, target)
}

func (rl *Relay) serveProxyOptions(w http.ResponseWriter, r *http.Request) {
	httpx.SetAllowOrigin(w, r, rl.policy.AllowedOrigins)
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Range")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges, Content-Disposition, X-File-Size, X-Range-Support")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func isAbsoluteHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (rl *Relay) serveProxyHead(w http.ResponseWriter, r *http.Request, target string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodHead, target, nil)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "failed to build origin request"))
		return
	}
	rl.applyForwardHeaders(req, target, nil)

	resp, err := rl.client.Do(req)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, "origin request failed"))
		return
	}
	defer resp.Body.Close()

	size := contentLength(resp)
	supportsRanges := acceptsRangeBytes(resp.Header.Get("Accept-Ranges"))

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("X-File-Size", strconv.FormatInt(size, 10))
	w.Header().Set("X-Range-Support", strconv.FormatBool(supportsRanges))
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
}

// serveProxyGet implements every GET query contract from spec §6: plain
// range forwarding, the `start`/`end` explicit-range override, `download`'s
// forced-download reshaping, `inflate`+`size`'s server-side raw DEFLATE, and
// `media`+`type`'s MediaGateway activation.
func (rl *Relay) serveProxyGet(w http.ResponseWriter, r *http.Request, target string) {
	q := r.URL.Query()
	start, hasStart := parseQueryInt64(q, "start")
	end, hasEnd := parseQueryInt64(q, "end")
	downloadName := q.Get("download")
	inflate := q.Get("inflate") == "1"
	declaredSize, hasSize := parseQueryInt64(q, "size")
	mediaOn := q.Get("media") == "1"
	mediaType := q.Get("type")

	if mediaOn {
		if !hasStart || !hasEnd {
			server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "media mode requires start and end"))
			return
		}
		src := bytesource.NewRemoteSource(rl.client, target, 0, bytesource.RangeSupportYes, true)
		if err := mediagateway.Stream(w, r, src, start, end, mediaType); err != nil {
			log.Error("proxy media stream failed", "error", err, "url", target)
		}
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "failed to build origin request"))
		return
	}
	rl.applyForwardHeaders(req, target, nil)

	switch {
	case hasStart && hasEnd:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	default:
		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && httpguts.ValidHeaderFieldValue(rangeHeader) {
			req.Header.Set("Range", rangeHeader)
		}
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, "origin request failed"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, fmt.Sprintf("upstream returned %d", resp.StatusCode)))
		return
	}

	size := contentLength(resp)
	if size > rl.policy.ProxyMaxResponseSize {
		server.SendError(w, r, core.NewError(core.ErrorCodeEntryTooLarge, "resource exceeds proxy size limit"))
		return
	}

	if inflate {
		if !hasSize {
			server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "inflate requires size"))
			return
		}
		rl.serveInflated(w, r, resp, declaredSize, downloadName)
		return
	}

	if downloadName != "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+url.QueryEscape(downloadName)+`"`)
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, resp.Body)
		return
	}

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Content-Disposition"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// serveInflated implements `inflate=1`&`size=N`: the already-fetched
// (compressed) upstream range is decoded as raw DEFLATE and the decompressed
// bytes, sized to the caller's declared length, are returned instead.
func (rl *Relay) serveInflated(w http.ResponseWriter, r *http.Request, resp *http.Response, declaredSize int64, downloadName string) {
	compressed, err := io.ReadAll(io.LimitReader(resp.Body, rl.policy.ProxyMaxResponseSize+1))
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, "failed to read upstream body"))
		return
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()
	out := make([]byte, declaredSize)
	n, err := io.ReadFull(fr, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		e := core.NewAPIError("failed to inflate upstream range")
		e.Cause = err
		server.SendError(w, r, e)
		return
	}
	out = out[:n]

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if downloadName != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+url.QueryEscape(downloadName)+`"`)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func parseQueryInt64(q url.Values, key string) (int64, bool) {
	v := q.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// handleMint mints a signed, shareable "/v0/proxy/link/{token}" URL for a
// caller-supplied origin URL — a convenience on top of the mandatory
// ?url=-form contract, for callers that don't want the raw origin visible
// in the link they hand out.
func (rl *Relay) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		server.SendError(w, r, core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "failed to parse form"))
		return
	}
	link := r.Form.Get("url")
	if link == "" {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing url"))
		return
	}

	ttl := 12 * time.Hour
	if exp := r.Form.Get("exp"); exp != "" {
		if d, err := time.ParseDuration(exp); err == nil {
			ttl = d
		}
	}

	proxyLink, err := MintLink(rl.policy, httpx.BaseURL(r)+"/v0/proxy/link", link, nil, ttl)
	if err != nil {
		server.SendError(w, r, core.NewAPIError("failed to mint proxy link"))
		return
	}

	if r.Method == http.MethodGet && r.Form.Get("redirect") != "" {
		http.Redirect(w, r, proxyLink, http.StatusFound)
		return
	}

	server.SendResponse(w, r, http.StatusOK, map[string]string{"link": proxyLink}, nil)
}

// handleAccess resolves a minted token back to its origin link and forwards
// a GET or HEAD to it. Only the inbound Range header is forwarded; the
// start/end, download, inflate and media query parameters of handleProxy
// are not applied, and the origin's status code is passed through as is.
func (rl *Relay) handleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		server.SendError(w, r, core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed"))
		return
	}

	token := r.PathValue("token")
	if token == "" {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing token"))
		return
	}

	info, err := ResolveLink(rl.policy, token)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeUnauthorized, "invalid or expired token"))
		return
	}

	if r.Method == http.MethodHead {
		rl.serveLinkHead(w, r, info)
		return
	}
	rl.serveLinkGet(w, r, info)
}

func (rl *Relay) serveLinkHead(w http.ResponseWriter, r *http.Request, info *LinkInfo) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodHead, info.Link, nil)
	if err != nil {
		server.SendError(w, r, core.NewAPIError("failed to build origin request"))
		return
	}
	rl.applyForwardHeaders(req, info.Link, info.Headers)

	resp, err := rl.client.Do(req)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, "origin request failed"))
		return
	}
	defer resp.Body.Close()

	size := contentLength(resp)
	supportsRanges := acceptsRangeBytes(resp.Header.Get("Accept-Ranges"))

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("X-File-Size", strconv.FormatInt(size, 10))
	w.Header().Set("X-Range-Support", strconv.FormatBool(supportsRanges))
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
}

func (rl *Relay) serveLinkGet(w http.ResponseWriter, r *http.Request, info *LinkInfo) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, info.Link, nil)
	if err != nil {
		server.SendError(w, r, core.NewAPIError("failed to build origin request"))
		return
	}
	rl.applyForwardHeaders(req, info.Link, info.Headers)
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && httpguts.ValidHeaderFieldValue(rangeHeader) {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeIo, "origin request failed"))
		return
	}
	defer resp.Body.Close()

	if contentLength(resp) > rl.policy.ProxyMaxResponseSize {
		server.SendError(w, r, core.NewError(core.ErrorCodeEntryTooLarge, "resource exceeds proxy size limit"))
		return
	}

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Content-Disposition"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (rl *Relay) applyForwardHeaders(req *http.Request, link string, extra map[string]string) {
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; remotezip/1.0)")
	if origin, err := originRoot(link); err == nil {
		req.Header.Set("Referer", origin)
	}
}
