package proxyclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	freelru "github.com/elastic/go-freelru"
	ratelimiter "github.com/nccapo/rate-limiter"

	"github.com/remotezip/remotezip/internal/bytesource"
	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/logger"
)

var log = logger.Scoped("proxyclient/probe")

// Client classifies origin URLs per spec §4.2's probe sequence, caching the
// result per URL so repeated opens of the same archive don't re-probe. The
// ByteSource itself is built by the caller (engine.Engine) from the result.
type Client struct {
	policy     *config.Policy
	httpClient *http.Client
	proxyBase  string

	cache    *freelru.LRU[string, Capability]
	limiters map[string]*ratelimiter.RateLimiter

	mu sync.Mutex
}

// NewClient builds a Client. proxyBase is this server's own relay base URL
// (e.g. "https://host/v0/proxy"), used when a direct probe fails.
func NewClient(policy *config.Policy, proxyBase string) (*Client, error) {
	cache, err := freelru.New[string, Capability](uint32(policy.ProbeCacheSize), hashString)
	if err != nil {
		return nil, err
	}
	cache.SetLifetime(policy.ProbeCacheTTL)

	return &Client{
		policy:     policy,
		httpClient: &http.Client{},
		proxyBase:  proxyBase,
		cache:      cache,
		limiters:   make(map[string]*ratelimiter.RateLimiter),
	}, nil
}

// limiterFor returns the per-origin-host rate limiter, creating one lazily
// the first time that host is seen.
func (c *Client) limiterFor(host string) *ratelimiter.RateLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := ratelimiter.NewRateLimiter(c.policy.RateLimitPerOriginRPS, time.Second)
	c.limiters[host] = l
	return l
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ErrProbeFailed names a probe sequence that could not classify a URL.
// Probe does not return it: when no step observes range support, Probe
// reports RangeSupportNo with a nil error.
var ErrProbeFailed = errors.New("proxyclient: unable to determine range support")

// Probe runs the four-step sequence from spec §4.2 and caches the result
// keyed by url. A cached entry is reused until its TTL expires.
func (c *Client) Probe(ctx context.Context, url string) (Capability, error) {
	if cap, ok := c.cache.Get(url); ok {
		return cap, nil
	}

	if host := originHost(url); host != "" {
		c.limiterFor(host).Wait()
	}

	cap, err := c.probeUncached(ctx, url)
	if err != nil {
		return Capability{}, err
	}
	cap.ProbedAt = time.Now()
	c.cache.Add(url, cap)
	return cap, nil
}

func (c *Client) probeUncached(ctx context.Context, url string) (Capability, error) {
	// Step 1: direct HEAD.
	if cap, ok := c.headProbe(ctx, url, c.httpClient, c.policy.HeadProbeTimeout); ok {
		return cap, nil
	}

	// Step 2: HEAD through the proxy relay.
	if c.proxyBase != "" {
		if cap, ok := c.headProbe(ctx, c.relayURL(url), c.httpClient, c.policy.HeadProbeTimeout); ok {
			cap.ViaProxy = true
			return cap, nil
		}
	}

	// Step 3: 1-byte ranged GET, direct then via proxy.
	if cap, ok := c.rangeProbe(ctx, url, c.httpClient, c.policy.RangeProbeTimeout); ok {
		return cap, nil
	}
	if c.proxyBase != "" {
		if cap, ok := c.rangeProbe(ctx, c.relayURL(url), c.httpClient, c.policy.RangeProbeTimeout); ok {
			cap.ViaProxy = true
			return cap, nil
		}
	}

	// Step 4: no 206 anywhere observed; resource does not support ranges.
	return Capability{SupportsRanges: bytesource.RangeSupportNo}, nil
}

func (c *Client) headProbe(ctx context.Context, url string, client *http.Client, timeout time.Duration) (Capability, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Capability{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Trace("head probe failed", "url", url, "error", err)
		return Capability{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Capability{}, false
	}

	support := bytesource.RangeSupportNo
	if acceptsRangeBytes(resp.Header.Get("Accept-Ranges")) {
		support = bytesource.RangeSupportYes
	}
	size := contentLength(resp)
	if size == 0 {
		if xfs := resp.Header.Get("X-File-Size"); xfs != "" {
			if n, err := stringToInt64(xfs); err == nil {
				size = n
			}
		}
	}
	if support == bytesource.RangeSupportNo {
		// HEAD alone doesn't prove a negative; fall through to the next step.
		return Capability{}, false
	}
	return Capability{TotalSize: size, SupportsRanges: support}, true
}

func (c *Client) rangeProbe(ctx context.Context, url string, client *http.Client, timeout time.Duration) (Capability, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := bytesource.FetchWithContext(ctx, client, url, 0, 0)
	if err != nil {
		log.Trace("range probe failed", "url", url, "error", err)
		return Capability{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return Capability{}, false
	}
	total, _ := bytesource.ParseContentRangeTotal(resp.Header.Get("Content-Range"))
	return Capability{TotalSize: total, SupportsRanges: bytesource.RangeSupportYes}, true
}

func (c *Client) relayURL(origin string) string {
	return c.proxyBase + "?url=" + url.QueryEscape(origin)
}

// RelayURL builds this client's proxy-relay address for origin, for
// callers (engine.Engine) that need to fetch through the relay after a
// probe determined direct access isn't viable.
func (c *Client) RelayURL(origin string) string {
	return c.relayURL(origin)
}

func stringToInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func originHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
