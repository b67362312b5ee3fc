// Package archiver assembles a new ZIP archive from a caller-selected
// subset of an existing archive's entries, re-fetching each through the
// extractor (spec.md §4.6). Grounded in the zipserve reference package's
// Archive/Template/writeCentralDirectory shape, adapted to build each
// entry's bytes from EntryExtractor output instead of a caller-supplied
// io.ReaderAt, and in the teacher's usenet_pool.inspect.go for the
// bounded-fan-out-with-indexed-results pattern (`pond.NewPool` +
// `Submit` + post-hoc result scan).
package archiver

import (
	"bytes"
	"context"
	"errors"
	"hash/crc32"

	"github.com/alitto/pond/v2"
	"github.com/klauspost/compress/flate"

	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/logger"
	"github.com/remotezip/remotezip/internal/zipdir"
)

var log = logger.Scoped("archiver")

// ErrConfirmationDeclined is returned when a selection crosses the size or
// entry-count policy threshold and the supplied Confirm hook returns false.
var ErrConfirmationDeclined = errors.New("archiver: selection declined at confirmation")

// ErrNoMatchingEntries is returned when none of the requested paths exist
// in the source archive's entry list, and also when every matched entry
// failed to re-fetch (no Result, and so no warnings, is returned then).
var ErrNoMatchingEntries = errors.New("archiver: no selected paths matched archive entries")

// Extractor is the subset of extractor.Extractor this package depends on,
// kept narrow so archiver does not import the extractor package's
// internals or create a cycle with engine.
type Extractor interface {
	Extract(entry zipdir.Entry, opts ExtractOptions) (*ExtractResult, error)
}

// ExtractOptions mirrors extractor.Options' shape without importing it.
type ExtractOptions struct {
	Preview bool
}

// ExtractResult mirrors extractor.Result's shape without importing it.
type ExtractResult struct {
	Data []byte
}

// Warning records a selected entry that could not be re-fetched; the
// archiver still produces a ZIP for the entries that succeeded (spec.md
// §9 Open Question 3, resolved as an explicit, caller-visible skip list).
type Warning struct {
	Path string
	Err  error
}

// Result is the assembled archive plus any per-entry warnings.
type Result struct {
	Data     []byte
	Warnings []Warning
}

// ConfirmFunc is invoked before fetching begins when a selection crosses
// the size or entry-count confirmation threshold (spec.md §4.6). Returning
// false aborts the build with ErrConfirmationDeclined.
type ConfirmFunc func(totalSize int64, entryCount int) bool

type fetchResult struct {
	entry zipdir.Entry
	data  []byte
	err   error
}

// Build re-fetches every entry in entries whose Path is in paths, through
// ex, DEFLATE-recompresses the non-directory ones at the default
// compression level, and assembles a fresh ZIP. Concurrency is bounded by
// policy.ArchiveWorkerConcurrency via an alitto/pond/v2 worker pool.
func Build(ctx context.Context, policy *config.Policy, entries []zipdir.Entry, paths []string, ex Extractor, confirm ConfirmFunc) (*Result, error) {
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}

	var selected []zipdir.Entry
	var totalSize int64
	for _, e := range entries {
		if !wanted[e.Path] {
			continue
		}
		selected = append(selected, e)
		totalSize += int64(e.UncompressedSize)
	}
	if len(selected) == 0 {
		return nil, ErrNoMatchingEntries
	}

	if confirm != nil && (totalSize > policy.ArchiveSizeConfirmThreshold || len(selected) > policy.ArchiveEntryCountConfirmThreshold) {
		if !confirm(totalSize, len(selected)) {
			return nil, ErrConfirmationDeclined
		}
	}

	results := make([]fetchResult, len(selected))
	pool := pond.NewPool(policy.ArchiveWorkerConcurrency)
	for i, e := range selected {
		i, e := i, e
		pool.Submit(func() {
			if ctx.Err() != nil {
				results[i] = fetchResult{entry: e, err: ctx.Err()}
				return
			}
			if e.IsDirectory {
				results[i] = fetchResult{entry: e}
				return
			}
			res, err := ex.Extract(e, ExtractOptions{Preview: false})
			if err != nil {
				results[i] = fetchResult{entry: e, err: err}
				return
			}
			results[i] = fetchResult{entry: e, data: res.Data}
		})
	}
	pool.StopAndWait()

	var warnings []Warning
	var ok []fetchResult
	for _, r := range results {
		if r.err != nil {
			log.Warn("entry re-fetch failed, skipping from selection", "path", r.entry.Path, "error", r.err)
			warnings = append(warnings, Warning{Path: r.entry.Path, Err: r.err})
			continue
		}
		ok = append(ok, r)
	}
	if len(ok) == 0 {
		return nil, ErrNoMatchingEntries
	}

	data, err := assemble(ok)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Warnings: warnings}, nil
}

func assemble(results []fetchResult) ([]byte, error) {
	var buf bytes.Buffer
	dir := make([]centralDirRecord, 0, len(results))

	for _, r := range results {
		offset := uint32(buf.Len())
		method := zipdir.MethodDeflate
		compressed := r.data
		if r.entry.IsDirectory {
			method = zipdir.MethodStored
			compressed = nil
		} else {
			var cb bytes.Buffer
			w, err := flate.NewWriter(&cb, flate.DefaultCompression)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(r.data); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			compressed = cb.Bytes()
		}

		crc := crc32.ChecksumIEEE(r.data)
		writeLocalFileHeader(&buf, r.entry.Path, method, crc, uint32(len(compressed)), uint32(len(r.data)))
		buf.Write(compressed)

		dir = append(dir, centralDirRecord{
			name:             r.entry.Path,
			method:           method,
			crc32:            crc,
			compressedSize:   uint32(len(compressed)),
			uncompressedSize: uint32(len(r.data)),
			localHeaderOffset: offset,
		})
	}

	cdOffset := uint32(buf.Len())
	for _, d := range dir {
		writeCentralDirectoryHeader(&buf, d)
	}
	cdSize := uint32(buf.Len()) - cdOffset

	writeEOCD(&buf, uint16(len(dir)), cdSize, cdOffset)

	return buf.Bytes(), nil
}
