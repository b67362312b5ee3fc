// Package config loads the tunable policy constants that drive the engine,
// the way the teacher's sibling repos load a viper-backed Config struct.
// internal/config is the only package in this module that touches viper or
// the environment directly; every other package receives a *Policy at
// construction.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Policy groups every tunable named in the engine's resource model. No
// package outside internal/config reads an environment variable or a config
// file directly — Policy is constructed once at startup and passed down.
type Policy struct {
	// ProxyMaxResponseSize rejects proxied resources above this size with
	// a 413. The check compares the Content-Length the origin reports; a
	// passthrough body that reports none, or under-reports, is not cut off.
	ProxyMaxResponseSize int64 `mapstructure:"proxy_max_response_size"`

	// RangeParseThreshold is the archive size above which the caller
	// prefers range-parse mode (Central Directory only) over a full
	// download, when the origin also supports ranges.
	RangeParseThreshold int64 `mapstructure:"range_parse_threshold"`

	// PreviewSizeLimit caps the uncompressed size of an entry eligible
	// for a text/binary preview; larger entries become TooLarge.
	PreviewSizeLimit int64 `mapstructure:"preview_size_limit"`

	// InBrowserDecompressionCeiling caps what the caller will decompress
	// itself for a download; STORED entries above it stream through the
	// proxy, DEFLATE entries above it are rejected outright.
	InBrowserDecompressionCeiling int64 `mapstructure:"in_browser_decompression_ceiling"`

	// CodePreviewLineLimit truncates a text preview after this many lines.
	CodePreviewLineLimit int `mapstructure:"code_preview_line_limit"`

	// ArchiveSizeConfirmThreshold and ArchiveEntryCountConfirmThreshold
	// gate the SurgicalArchiver's caller-visible confirmation hook.
	ArchiveSizeConfirmThreshold       int64 `mapstructure:"archive_size_confirm_threshold"`
	ArchiveEntryCountConfirmThreshold int   `mapstructure:"archive_entry_count_confirm_threshold"`

	// HeadProbeTimeout and RangeProbeTimeout bound the ByteSource probe
	// sequence (spec §4.1/§5). Full downloads are unbounded by default.
	HeadProbeTimeout  time.Duration `mapstructure:"head_probe_timeout"`
	RangeProbeTimeout time.Duration `mapstructure:"range_probe_timeout"`

	// ArchiveWorkerConcurrency bounds the pond worker pool SurgicalArchiver
	// uses to re-fetch selected entries concurrently.
	ArchiveWorkerConcurrency int `mapstructure:"archive_worker_concurrency"`

	// ProbeCacheTTL and ProbeCacheSize bound the freelru cache ProxyClient
	// keeps of resolved Capability records, keyed by origin URL.
	ProbeCacheTTL  time.Duration `mapstructure:"probe_cache_ttl"`
	ProbeCacheSize int           `mapstructure:"probe_cache_size"`

	// RateLimitPerOriginRPS throttles outbound probes per upstream origin
	// host, guarding against a single slow or hostile origin starving the
	// rest of the pool. Relay traffic is not throttled, and RateLimitBurst
	// is loaded but not read by any limiter.
	RateLimitPerOriginRPS int `mapstructure:"rate_limit_per_origin_rps"`
	RateLimitBurst        int `mapstructure:"rate_limit_burst"`

	// ProxyLinkSecret signs and encrypts proxy link tokens (core.CreateJWT /
	// core.Encrypt). Generated randomly at startup if unset, matching the
	// teacher's PASETO secret bootstrap, but never logged.
	ProxyLinkSecret string `mapstructure:"proxy_link_secret"`

	// AllowedOrigins drives the CORS middleware in internal/httpx.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// LogLevel and LogFormat select internal/logger's minimum level; format
	// is informational only since internal/logger picks tint vs JSON by
	// terminal detection rather than by config.
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// ListenAddr is the address cmd/remotezipd binds its HTTP server to.
	ListenAddr string `mapstructure:"listen_addr"`

	// HandleTTL bounds how long an opened ArchiveHandle stays addressable
	// via its registry id before a periodic sweep evicts it.
	HandleTTL time.Duration `mapstructure:"handle_ttl"`

	// HandleSweepInterval is how often the registry sweep runs.
	HandleSweepInterval time.Duration `mapstructure:"handle_sweep_interval"`
}

const envPrefix = "REMOTEZIP"

// Load builds a Policy from defaults, an optional config file at path (skip
// if empty), and REMOTEZIP_-prefixed environment variables, in that order
// of increasing precedence — mirroring the teacher pack's viper setup.
func Load(path string) (*Policy, error) {
	v := viper.New()

	v.SetDefault("proxy_max_response_size", 500<<20)
	v.SetDefault("range_parse_threshold", 20<<20)
	v.SetDefault("preview_size_limit", 25<<20)
	v.SetDefault("in_browser_decompression_ceiling", 100<<20)
	v.SetDefault("code_preview_line_limit", 5000)
	v.SetDefault("archive_size_confirm_threshold", 200<<20)
	v.SetDefault("archive_entry_count_confirm_threshold", 50)
	v.SetDefault("head_probe_timeout", 15*time.Second)
	v.SetDefault("range_probe_timeout", 10*time.Second)
	v.SetDefault("archive_worker_concurrency", 8)
	v.SetDefault("probe_cache_ttl", 5*time.Minute)
	v.SetDefault("probe_cache_size", 1024)
	v.SetDefault("rate_limit_per_origin_rps", 4)
	v.SetDefault("rate_limit_burst", 8)
	v.SetDefault("proxy_link_secret", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("handle_ttl", 30*time.Minute)
	v.SetDefault("handle_sweep_interval", 5*time.Minute)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, err
	}

	if p.ProxyLinkSecret == "" {
		secret, err := randomSecret(32)
		if err != nil {
			return nil, err
		}
		p.ProxyLinkSecret = secret
	}

	return &p, nil
}

// Default returns a Policy populated with defaults only, for tests and for
// callers that don't need file/env overrides.
func Default() *Policy {
	p, err := Load("")
	if err != nil {
		// Load("") never touches a config file and only fails if the
		// random secret source is broken, which Default's callers (tests,
		// simple embedders) should see loudly rather than silently retry.
		panic(err)
	}
	return p
}
