package archiver

import (
	"bytes"
	"encoding/binary"

	"github.com/remotezip/remotezip/internal/zipdir"
)

type centralDirRecord struct {
	name              string
	method            zipdir.CompressionMethod
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	localHeaderOffset uint32
}

func le16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func le32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// writeLocalFileHeader writes a 30-byte Local File Header followed by the
// entry name, matching the layout internal/extractor reads back when it
// locates entry data (PKWARE APPNOTE
// §4.3.7).
func writeLocalFileHeader(buf *bytes.Buffer, name string, method zipdir.CompressionMethod, crc32, compressedSize, uncompressedSize uint32) {
	le32(buf, sigLocalFileHeader)
	le16(buf, versionNeeded)
	le16(buf, 0) // flags
	le16(buf, uint16(method))
	le16(buf, 0) // mod time
	le16(buf, 0) // mod date
	le32(buf, crc32)
	le32(buf, compressedSize)
	le32(buf, uncompressedSize)
	le16(buf, uint16(len(name)))
	le16(buf, 0) // extra len
	buf.WriteString(name)
}

// writeCentralDirectoryHeader writes a 46-byte Central Directory File
// Header followed by the entry name (PKWARE APPNOTE §4.3.12).
func writeCentralDirectoryHeader(buf *bytes.Buffer, d centralDirRecord) {
	le32(buf, sigCentralDirectoryFile)
	le16(buf, versionMadeBy)
	le16(buf, versionNeeded)
	le16(buf, 0) // flags
	le16(buf, uint16(d.method))
	le16(buf, 0) // mod time
	le16(buf, 0) // mod date
	le32(buf, d.crc32)
	le32(buf, d.compressedSize)
	le32(buf, d.uncompressedSize)
	le16(buf, uint16(len(d.name)))
	le16(buf, 0) // extra len
	le16(buf, 0) // comment len
	le16(buf, 0) // disk number start
	le16(buf, 0) // internal attrs
	le32(buf, 0) // external attrs
	le32(buf, d.localHeaderOffset)
	buf.WriteString(d.name)
}

// writeEOCD writes the 22-byte End of Central Directory record (PKWARE
// APPNOTE §4.3.16). Only the classic EOCD form is emitted; no ZIP64
// records are written, so sizes and offsets are stored as 32-bit values
// and the entry count as a 16-bit value.
func writeEOCD(buf *bytes.Buffer, entryCount uint16, cdSize, cdOffset uint32) {
	le32(buf, sigEndOfCentralDir)
	le16(buf, 0) // disk number
	le16(buf, 0) // disk with CD start
	le16(buf, entryCount)
	le16(buf, entryCount)
	le32(buf, cdSize)
	le32(buf, cdOffset)
	le16(buf, 0) // comment len
}
