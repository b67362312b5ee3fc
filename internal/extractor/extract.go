package extractor

import (
	"encoding/binary"
	"errors"

	"github.com/remotezip/remotezip/internal/zipdir"
)

const (
	methodStored  = zipdir.MethodStored
	methodDeflate = zipdir.MethodDeflate
)

var errCorruptLocalHeader = zipdir.ErrCorruptLocalHeader

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func leUint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

var (
	// ErrTooLarge is returned when a preview request's entry exceeds the
	// preview size limit.
	ErrTooLarge = errors.New("extractor: entry exceeds preview size limit")

	// ErrUnsupportedCompression is returned for any compression method
	// other than STORED and DEFLATE.
	ErrUnsupportedCompression = errors.New("extractor: unsupported compression method")

	// ErrCorruptDeflate is returned when DEFLATE decoding fails to
	// produce exactly uncompressed_size bytes.
	ErrCorruptDeflate = errors.New("extractor: corrupt deflate stream")
)

// Options controls one Extract call.
type Options struct {
	// Preview, when true, enforces the preview size gate (spec §4.4 Step
	// 4) instead of extracting arbitrarily large entries.
	Preview bool
}

// Result is the decoded, newly allocated bytes for one entry. It never
// aliases the underlying ByteSource's buffers.
type Result struct {
	Data []byte
}

// Extract resolves entry's Local File Header, fetches its compressed
// region, and decodes it per spec §4.4.
func (x *Extractor) Extract(entry zipdir.Entry, opts Options) (*Result, error) {
	if opts.Preview && entry.UncompressedSize > uint64(x.policy.PreviewSizeLimit) {
		return nil, ErrTooLarge
	}

	dataStart, dataEnd, err := x.resolveDataOffsets(entry)
	if err != nil {
		return nil, err
	}

	var compressed []byte
	if entry.CompressedSize > 0 {
		compressed, err = x.src.ReadRange(dataStart, dataEnd)
		if err != nil {
			return nil, err
		}
	}

	switch entry.CompressionMethod {
	case methodStored:
		out := make([]byte, len(compressed))
		copy(out, compressed)
		return &Result{Data: out}, nil
	case methodDeflate:
		decoded, err := x.inflate(compressed, entry.UncompressedSize)
		if err != nil {
			return nil, err
		}
		return &Result{Data: decoded}, nil
	default:
		return nil, ErrUnsupportedCompression
	}
}

// DataRange resolves entry's Local File Header and returns the absolute
// byte offsets of its raw (still-compressed) data region in the underlying
// ByteSource, for callers that stream bytes directly (mediagateway) instead
// of decoding them through Extract.
func (x *Extractor) DataRange(entry zipdir.Entry) (dataStart, dataEndInclusive int64, err error) {
	return x.resolveDataOffsets(entry)
}

func (x *Extractor) resolveDataOffsets(entry zipdir.Entry) (dataStart, dataEnd int64, err error) {
	start := int64(entry.LocalHeaderOffset)
	probeEnd := start + localHeaderProbeLen - 1
	if srcLen := x.src.Length(); srcLen > 0 && probeEnd >= srcLen {
		probeEnd = srcLen - 1
	}

	buf, err := x.src.ReadRange(start, probeEnd)
	if err != nil {
		return 0, 0, err
	}
	if len(buf) < 30 {
		return 0, 0, errCorruptLocalHeader
	}
	if leUint32(buf) != localFileHeaderSig {
		return 0, 0, errCorruptLocalHeader
	}
	nameLen := int(leUint16(buf[26:28]))
	extraLen := int(leUint16(buf[28:30]))

	need := 30 + nameLen + extraLen
	if need > len(buf) {
		// Name+extra exceeded our 512-byte guess; re-fetch precisely.
		buf, err = x.src.ReadRange(start, start+int64(need)-1)
		if err != nil {
			return 0, 0, err
		}
	}

	dataStart = start + 30 + int64(nameLen) + int64(extraLen)
	dataEnd = dataStart + int64(entry.CompressedSize) - 1
	if entry.CompressedSize == 0 {
		dataEnd = dataStart - 1
	}
	return dataStart, dataEnd, nil
}
