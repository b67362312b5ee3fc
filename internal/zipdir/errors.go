package zipdir

import "errors"

var (
	// ErrNotAZip is returned when no EOCD signature is found in the tail.
	ErrNotAZip = errors.New("zipdir: not a zip file")

	// ErrCorruptDirectory is returned when the Central Directory's header
	// count, sizes, or offsets are self-inconsistent.
	ErrCorruptDirectory = errors.New("zipdir: corrupt central directory")

	// ErrCorruptLocalHeader is returned by callers resolving a Local File
	// Header that doesn't carry the expected signature.
	ErrCorruptLocalHeader = errors.New("zipdir: corrupt local file header")
)
