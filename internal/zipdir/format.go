// Package zipdir locates and decodes a ZIP/ZIP64 archive's Central
// Directory over a random-access ByteSource, without ever reading entry
// data. It is grounded in the MinIO zipindex reference package's
// readDirectoryEnd/readDirectoryHeader walk, adapted from io.ReaderAt to
// this module's bytesource.ByteSource and from a byte-slice decoder to one
// that issues exactly the ranged reads spec'd in §4.3.
package zipdir

const (
	sigEndOfCentralDirectory = 0x06054b50
	sigCentralDirectoryFile  = 0x02014b50
	sigZip64Locator          = 0x07064b50
	sigZip64EndOfCentralDir  = 0x06064b50
	sigLocalFileHeader       = 0x04034b50

	eocdFixedLen       = 22
	eocdMaxCommentLen  = 65535
	zip64LocatorLen    = 20
	zip64EOCDFixedLen  = 56
	cdFileHeaderLen    = 46
	localFileHeaderLen = 30

	zip64ExtraID = 0x0001

	sentinel32 = 0xFFFFFFFF
	sentinel16 = 0xFFFF
)

// CompressionMethod identifies how an entry's bytes are stored.
type CompressionMethod uint16

const (
	MethodStored  CompressionMethod = 0
	MethodDeflate CompressionMethod = 8
)
