package archiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"

	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/zipdir"
)

type fakeExtractor struct {
	data map[string][]byte
	fail map[string]error
}

func (f *fakeExtractor) Extract(entry zipdir.Entry, opts ExtractOptions) (*ExtractResult, error) {
	if err, ok := f.fail[entry.Path]; ok {
		return nil, err
	}
	return &ExtractResult{Data: f.data[entry.Path]}, nil
}

func testEntries() []zipdir.Entry {
	return []zipdir.Entry{
		{Path: "dir/", Name: "dir", IsDirectory: true},
		{Path: "dir/a.txt", Name: "a.txt", UncompressedSize: 5},
		{Path: "dir/b.txt", Name: "b.txt", UncompressedSize: 5},
	}
}

func TestBuild_SelectsAndAssembles(t *testing.T) {
	ex := &fakeExtractor{data: map[string][]byte{
		"dir/a.txt": []byte("hello"),
		"dir/b.txt": []byte("world"),
	}}

	res, err := Build(context.Background(), config.Default(), testEntries(), []string{"dir/", "dir/a.txt", "dir/b.txt"}, ex, nil)
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.True(t, bytes.HasPrefix(res.Data, []byte{0x50, 0x4b, 0x03, 0x04}))

	names, contents := readBackZip(t, res.Data)
	require.ElementsMatch(t, []string{"dir/", "dir/a.txt", "dir/b.txt"}, names)
	require.Equal(t, "hello", contents["dir/a.txt"])
	require.Equal(t, "world", contents["dir/b.txt"])
}

func TestBuild_NoMatchingEntries(t *testing.T) {
	ex := &fakeExtractor{}
	_, err := Build(context.Background(), config.Default(), testEntries(), []string{"nonexistent"}, ex, nil)
	require.ErrorIs(t, err, ErrNoMatchingEntries)
}

func TestBuild_ConfirmationDeclined(t *testing.T) {
	ex := &fakeExtractor{data: map[string][]byte{"dir/a.txt": []byte("hello")}}
	policy := config.Default()
	policy.ArchiveEntryCountConfirmThreshold = 0

	_, err := Build(context.Background(), policy, testEntries(), []string{"dir/a.txt"}, ex, func(size int64, count int) bool {
		return false
	})
	require.ErrorIs(t, err, ErrConfirmationDeclined)
}

func TestBuild_PartialFailureYieldsWarnings(t *testing.T) {
	ex := &fakeExtractor{
		data: map[string][]byte{"dir/a.txt": []byte("hello")},
		fail: map[string]error{"dir/b.txt": errors.New("upstream gone")},
	}

	res, err := Build(context.Background(), config.Default(), testEntries(), []string{"dir/a.txt", "dir/b.txt"}, ex, nil)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, "dir/b.txt", res.Warnings[0].Path)

	names, _ := readBackZip(t, res.Data)
	require.ElementsMatch(t, []string{"dir/a.txt"}, names)
}

// readBackZip decodes the minimal fixed-width ZIP layout this package
// writes, for test verification only (no compressed-format-agnostic
// parsing is needed since every entry here is small enough to read in one
// pass and we know the exact writer that produced it).
func readBackZip(t *testing.T, data []byte) (names []string, contents map[string]string) {
	t.Helper()
	contents = map[string]string{}
	pos := 0
	for pos+4 <= len(data) && bytes.Equal(data[pos:pos+4], []byte{0x50, 0x4b, 0x03, 0x04}) {
		method := le16At(data, pos+8)
		compressedSize := le32At(data, pos+18)
		uncompressedSize := le32At(data, pos+22)
		nameLen := le16At(data, pos+26)
		extraLen := le16At(data, pos+28)
		nameStart := pos + 30
		name := string(data[nameStart : nameStart+int(nameLen)])
		dataStart := nameStart + int(nameLen) + int(extraLen)
		compressed := data[dataStart : dataStart+int(compressedSize)]

		names = append(names, name)
		if uncompressedSize > 0 {
			if method == uint16(0) {
				contents[name] = string(compressed)
			} else {
				r := flate.NewReader(bytes.NewReader(compressed))
				out := make([]byte, uncompressedSize)
				_, err := io.ReadFull(r, out)
				require.NoError(t, err)
				contents[name] = string(out)
			}
		}
		pos = dataStart + int(compressedSize)
	}
	return names, contents
}

func le16At(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func le32At(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
