package extractor

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/flate"
)

// inflate decodes a raw DEFLATE stream (no zlib/gzip framing), pre-sizing
// the output to uncompressedSize per spec §4.4 Step 3. A pooled buffer from
// x.pool backs the intermediate copy so repeated extractions don't churn
// large allocations under concurrent SurgicalArchiver fan-out.
func (x *Extractor) inflate(compressed []byte, uncompressedSize uint64) ([]byte, error) {
	res, err := x.pool.Acquire(context.Background())
	if err != nil {
		return nil, err
	}
	defer res.Release()

	buf := res.Value()
	buf.Reset()
	buf.Grow(int(uncompressedSize))

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	n, err := io.Copy(buf, r)
	if err != nil {
		return nil, ErrCorruptDeflate
	}
	if uint64(n) != uncompressedSize {
		return nil, ErrCorruptDeflate
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
