// Package engine wires ByteSource, ProxyClient, DirectoryParser, Extractor,
// MediaGateway, and Archiver into a single ArchiveHandle lifecycle (spec.md
// §2's control flow, SPEC_FULL.md §4 "Engine"). Grounded directly in
// spec.md §2's control-flow paragraph and in spec.md §9's "no global
// process state, immutable handle" design note: OpenURL and OpenBuffer
// always return a fresh *ArchiveHandle, nothing is mutated in place afterward.
package engine

import (
	"context"
	"net/http"

	"github.com/zeebo/xxh3"

	"github.com/remotezip/remotezip/internal/archiver"
	"github.com/remotezip/remotezip/internal/bytesource"
	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/extractor"
	"github.com/remotezip/remotezip/internal/logger"
	"github.com/remotezip/remotezip/internal/proxyclient"
	"github.com/remotezip/remotezip/internal/zipdir"
)

var log = logger.Scoped("engine")

// Warning is a non-fatal issue surfaced from directory parsing, threaded
// through to the handle (spec.md §7). Selection-to-ZIP failures are not
// recorded here; they are returned in archiver.Result.Warnings by Archive.
type Warning struct {
	Path string
	Err  error
}

// ArchiveHandle is the immutable result of opening one archive: its
// ByteSource, total size, parsed entries, and derived metadata. Nothing in
// this struct is mutated after OpenURL or OpenBuffer returns it.
type ArchiveHandle struct {
	Source     bytesource.ByteSource
	TotalSize  int64
	Entries    []zipdir.Entry
	IsProxied  bool
	ETag       string
	Warnings   []Warning
	SourceURL  string

	extractor *extractor.Extractor
	policy    *config.Policy
}

// Engine constructs ArchiveHandles from a URL or an in-memory buffer,
// owning the ProxyClient used to classify remote URLs.
type Engine struct {
	policy *config.Policy
	client *proxyclient.Client
	http   *http.Client
}

// New builds an Engine. proxyBase is this server's own relay base URL,
// passed to the ProxyClient for its probe-step-2/3 fallback.
func New(policy *config.Policy, proxyBase string) (*Engine, error) {
	client, err := proxyclient.NewClient(policy, proxyBase)
	if err != nil {
		return nil, err
	}
	return &Engine{policy: policy, client: client, http: &http.Client{}}, nil
}

// OpenBuffer builds an ArchiveHandle directly from an in-memory buffer,
// skipping the probe sequence entirely (spec.md §4.1's "Buffer source").
func (e *Engine) OpenBuffer(ctx context.Context, data []byte) (*ArchiveHandle, error) {
	src := bytesource.NewBufferSource(data)
	return e.build(ctx, src, "", false)
}

// OpenURL classifies url via the probe sequence (spec.md §4.2), builds the
// resulting RemoteSource (direct or proxied), and parses its directory.
func (e *Engine) OpenURL(ctx context.Context, url string) (*ArchiveHandle, error) {
	cap, err := e.client.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	fetchURL := url
	if cap.ViaProxy {
		fetchURL = e.client.RelayURL(url)
	}

	src := bytesource.NewRemoteSource(e.http, fetchURL, cap.TotalSize, cap.SupportsRanges, cap.ViaProxy)
	return e.build(ctx, src, url, cap.ViaProxy)
}

func (e *Engine) build(ctx context.Context, src bytesource.ByteSource, sourceURL string, proxied bool) (*ArchiveHandle, error) {
	dir, err := zipdir.Parse(ctx, src, sourceURL)
	if err != nil {
		return nil, err
	}

	ex, err := extractor.New(src, e.policy)
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	for _, w := range dir.Warnings {
		warnings = append(warnings, Warning{Path: w.Path, Err: w.Err})
	}

	return &ArchiveHandle{
		Source:    src,
		TotalSize: src.Length(),
		Entries:   dir.Entries,
		IsProxied: proxied,
		ETag:      deriveETag(dir),
		Warnings:  warnings,
		SourceURL: sourceURL,
		extractor: ex,
		policy:    e.policy,
	}, nil
}

// deriveETag hashes the EOCD-derived directory metadata (entry count,
// directory offset/size) with xxh3, giving callers a stable cache key for
// the listing response without hashing the archive's full bytes.
func deriveETag(dir *zipdir.Directory) string {
	var buf [24]byte
	putUint64(buf[0:8], dir.CentralDirOffset)
	putUint64(buf[8:16], dir.CentralDirSize)
	putUint64(buf[16:24], uint64(len(dir.Entries)))
	h := xxh3.Hash(buf[:])
	return formatHex(h)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func formatHex(v uint64) string {
	const hexDigits = "0123456789abcdef"
	var out [16]byte
	for i := 15; i >= 0; i-- {
		out[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(out[:])
}

// FS returns a read-only fs.FS view over the handle's entries (SPEC_FULL.md
// §4.4.1).
func (h *ArchiveHandle) FS() *extractor.ArchiveFS {
	return extractor.NewArchiveFS(h.extractor, h.Entries)
}

// Extract decodes entry through the handle's Extractor.
func (h *ArchiveHandle) Extract(entry zipdir.Entry, opts extractor.Options) (*extractor.Result, error) {
	return h.extractor.Extract(entry, opts)
}

// DataRange resolves entry's raw data region in the handle's ByteSource,
// for MediaGateway's direct-range streaming of STORED entries.
func (h *ArchiveHandle) DataRange(entry zipdir.Entry) (dataStart, dataEndInclusive int64, err error) {
	return h.extractor.DataRange(entry)
}

// FindEntry looks up an entry by its archive-relative path.
func (h *ArchiveHandle) FindEntry(path string) (zipdir.Entry, bool) {
	for _, e := range h.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return zipdir.Entry{}, false
}

// Archive runs SurgicalArchiver over a selection of paths (spec.md §4.6).
// Callers are responsible for applying the single-entry and
// all-entries-redirect short-circuits before calling Archive, since those
// decisions depend on context (an HTTP response) this package doesn't own.
func (h *ArchiveHandle) Archive(ctx context.Context, paths []string, confirm archiver.ConfirmFunc) (*archiver.Result, error) {
	return archiver.Build(ctx, h.policy, h.Entries, paths, extractorAdapter{h.extractor}, confirm)
}

type extractorAdapter struct {
	ex *extractor.Extractor
}

func (a extractorAdapter) Extract(entry zipdir.Entry, opts archiver.ExtractOptions) (*archiver.ExtractResult, error) {
	res, err := a.ex.Extract(entry, extractor.Options{Preview: opts.Preview})
	if err != nil {
		return nil, err
	}
	return &archiver.ExtractResult{Data: res.Data}, nil
}
