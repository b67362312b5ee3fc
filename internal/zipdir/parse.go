package zipdir

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/charmap"

	"github.com/remotezip/remotezip/internal/bytesource"
	"github.com/remotezip/remotezip/internal/logger"
)

var log = logger.Scoped("zipdir/parse")

// Directory is the parsed Central Directory of one archive: its entries in
// Central Directory order, plus the byte extent the directory itself
// occupies (used by callers validating spec §3's ArchiveHandle invariant).
type Directory struct {
	Entries          []Entry
	CentralDirOffset uint64
	CentralDirSize   uint64
	Warnings         []Warning
}

// Warning records a non-fatal issue encountered while scanning the Central
// Directory: the scan stopped early but the entries decoded so far are
// still returned, per spec §4.3's failure semantics.
type Warning struct {
	Path string
	Err  error
}

var parseGroup singleflight.Group

// Parse locates and decodes src's Central Directory per spec §4.3. src must
// support ranges and report a known length. Concurrent Parse calls sharing
// the same coalesceKey (typically the source URL) collapse into one fetch.
func Parse(ctx context.Context, src bytesource.ByteSource, coalesceKey string) (*Directory, error) {
	if coalesceKey == "" {
		return parse(ctx, src)
	}
	v, err, _ := parseGroup.Do(coalesceKey, func() (any, error) {
		return parse(ctx, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Directory), nil
}

func parse(ctx context.Context, src bytesource.ByteSource) (*Directory, error) {
	total := src.Length()
	if total <= 0 {
		return nil, ErrNotAZip
	}

	tailWant := int64(eocdFixedLen + eocdMaxCommentLen)
	if tailWant > total {
		tailWant = total
	}
	tailStart := total - tailWant
	tail, err := src.ReadRange(tailStart, total-1)
	if err != nil {
		return nil, bytesource.NewIoError("read eocd tail", err)
	}

	eocdOffsetInTail := findEOCDSignature(tail)
	if eocdOffsetInTail < 0 {
		return nil, ErrNotAZip
	}

	var recordCount, cdSize, cdOffset uint64

	if eocdOffsetInTail >= zip64LocatorLen &&
		binary.LittleEndian.Uint32(tail[eocdOffsetInTail-zip64LocatorLen:]) == sigZip64Locator {

		locBuf := tail[eocdOffsetInTail-zip64LocatorLen:]
		zip64EOCDOffset := binary.LittleEndian.Uint64(locBuf[8:16])

		var zb []byte
		absStart := int64(zip64EOCDOffset)
		if absStart >= tailStart {
			zb = tail[absStart-tailStart:]
		} else {
			zb, err = src.ReadRange(absStart, absStart+zip64EOCDFixedLen-1)
			if err != nil {
				return nil, bytesource.NewIoError("read zip64 eocd", err)
			}
		}
		if len(zb) < zip64EOCDFixedLen || binary.LittleEndian.Uint32(zb) != sigZip64EndOfCentralDir {
			return nil, ErrCorruptDirectory
		}
		recordCount = binary.LittleEndian.Uint64(zb[32:40])
		cdSize = binary.LittleEndian.Uint64(zb[40:48])
		cdOffset = binary.LittleEndian.Uint64(zb[48:56])
	} else {
		eb := tail[eocdOffsetInTail:]
		if len(eb) < eocdFixedLen {
			return nil, ErrCorruptDirectory
		}
		recordCount = uint64(binary.LittleEndian.Uint16(eb[10:12]))
		cdSize = uint64(binary.LittleEndian.Uint32(eb[12:16]))
		cdOffset = uint64(binary.LittleEndian.Uint32(eb[16:20]))
	}

	if cdOffset >= uint64(total) {
		return nil, ErrCorruptDirectory
	}

	var cdBuf []byte
	if int64(cdOffset) >= tailStart {
		cdBuf = tail[cdOffset-uint64(tailStart):]
		if uint64(len(cdBuf)) < cdSize {
			// Tail buffer doesn't fully contain the declared directory
			// size (comment padding miscounted); fall back to a fresh
			// ranged read of exactly the declared region.
			cdBuf, err = src.ReadRange(int64(cdOffset), int64(cdOffset+cdSize)-1)
			if err != nil {
				return nil, bytesource.NewIoError("read central directory", err)
			}
		} else {
			cdBuf = cdBuf[:cdSize]
		}
	} else {
		cdBuf, err = src.ReadRange(int64(cdOffset), int64(cdOffset+cdSize)-1)
		if err != nil {
			return nil, bytesource.NewIoError("read central directory", err)
		}
	}

	entries, warnings, err := readCentralDirectoryEntries(cdBuf, recordCount)
	if err != nil {
		return nil, err
	}

	log.Trace("parsed central directory", "entries", len(entries), "cd_offset", cdOffset, "cd_size", cdSize)

	return &Directory{Entries: entries, CentralDirOffset: cdOffset, CentralDirSize: cdSize, Warnings: warnings}, nil
}

// findEOCDSignature scans buf backward for the EOCD signature, validating
// that the declared comment length is consistent with the buffer's end —
// the same check the reference findSignatureInBlock performs.
func findEOCDSignature(buf []byte) int {
	for i := len(buf) - eocdFixedLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) == sigEndOfCentralDirectory {
			commentLen := int(binary.LittleEndian.Uint16(buf[i+20:]))
			if i+eocdFixedLen+commentLen <= len(buf) {
				return i
			}
		}
	}
	return -1
}

var cp437Decoder = charmap.CodePage437.NewDecoder()

func readCentralDirectoryEntries(buf []byte, declaredCount uint64) ([]Entry, []Warning, error) {
	entries := make([]Entry, 0, declaredCount)
	var warnings []Warning
	pos := 0
	for pos+cdFileHeaderLen <= len(buf) {
		if binary.LittleEndian.Uint32(buf[pos:]) != sigCentralDirectoryFile {
			warnings = append(warnings, Warning{Err: ErrCorruptDirectory})
			log.Warn("central directory signature mismatch mid-scan, stopping early", "pos", pos, "decoded_so_far", len(entries))
			break
		}
		h := buf[pos:]
		flags := binary.LittleEndian.Uint16(h[8:10])
		method := binary.LittleEndian.Uint16(h[10:12])
		modTime := binary.LittleEndian.Uint16(h[12:14])
		modDate := binary.LittleEndian.Uint16(h[14:16])
		crc32 := binary.LittleEndian.Uint32(h[16:20])
		compressedSize := uint64(binary.LittleEndian.Uint32(h[20:24]))
		uncompressedSize := uint64(binary.LittleEndian.Uint32(h[24:28]))
		nameLen := int(binary.LittleEndian.Uint16(h[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(h[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(h[32:34]))
		localHeaderOffset := uint64(binary.LittleEndian.Uint32(h[42:46]))

		varStart := pos + cdFileHeaderLen
		varEnd := varStart + nameLen + extraLen + commentLen
		if varEnd > len(buf) {
			return nil, nil, ErrCorruptDirectory
		}

		rawName := buf[varStart : varStart+nameLen]
		extra := buf[varStart+nameLen : varStart+nameLen+extraLen]

		name := decodeName(rawName, flags)

		needUSize := uncompressedSize == sentinel32
		needCSize := compressedSize == sentinel32
		needOffset := localHeaderOffset == uint64(sentinel32)

		if needUSize || needCSize || needOffset {
			u64, c64, off64, err := readZip64Extra(extra, needUSize, needCSize, needOffset)
			if err != nil {
				return nil, nil, err
			}
			if needUSize {
				uncompressedSize = u64
			}
			if needCSize {
				compressedSize = c64
			}
			if needOffset {
				localHeaderOffset = off64
			}
		}

		entries = append(entries, newEntry(name, method, crc32, compressedSize, uncompressedSize, localHeaderOffset, msDosTimeToTime(modDate, modTime)))

		pos = varEnd
	}
	return entries, warnings, nil
}

// decodeName decodes a Central Directory filename, honoring the UTF-8 flag
// bit (0x800); when absent, the ZIP appnote specifies CP437 though many
// writers emit plain ASCII/UTF-8 anyway, so CP437 decoding is attempted and
// falls back to the raw bytes on failure.
func decodeName(raw []byte, flags uint16) string {
	if flags&0x800 != 0 {
		return string(raw)
	}
	decoded, err := cp437Decoder.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// readZip64Extra scans the extra field for the ZIP64 block (id 0x0001) and
// returns the 64-bit replacements for exactly the fields whose 32-bit value
// was the sentinel — present in order: uncompressed, compressed, header
// offset, disk number — per spec §4.3 Step 5.
func readZip64Extra(extra []byte, needUSize, needCSize, needOffset bool) (uSize, cSize, offset uint64, err error) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+size {
			break
		}
		block := extra[4 : 4+size]
		extra = extra[4+size:]

		if id != zip64ExtraID {
			continue
		}

		if needUSize {
			if len(block) < 8 {
				return 0, 0, 0, ErrCorruptDirectory
			}
			uSize = binary.LittleEndian.Uint64(block)
			block = block[8:]
		}
		if needCSize {
			if len(block) < 8 {
				return 0, 0, 0, ErrCorruptDirectory
			}
			cSize = binary.LittleEndian.Uint64(block)
			block = block[8:]
		}
		if needOffset {
			if len(block) < 8 {
				return 0, 0, 0, ErrCorruptDirectory
			}
			offset = binary.LittleEndian.Uint64(block)
		}
		return uSize, cSize, offset, nil
	}
	return 0, 0, 0, ErrCorruptDirectory
}
