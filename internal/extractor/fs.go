package extractor

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/remotezip/remotezip/internal/zipdir"
)

var (
	_ fs.FS      = (*ArchiveFS)(nil)
	_ afero.Fs   = (*ArchiveFSAfero)(nil)
	_ fs.File    = (*entryFile)(nil)
	_ afero.File = (*entryFileAfero)(nil)
)

// ArchiveFS presents an archive's entries as a read-only fs.FS, extracting
// each entry lazily on first Read. Grounded in the teacher's UsenetFS: same
// shape (a map of known names, lazy stream open on Open), generalized from
// a usenet NZB backing store to a ZIP's Central Directory.
type ArchiveFS struct {
	extractor *Extractor
	entries   map[string]zipdir.Entry
}

// NewArchiveFS builds a read-only filesystem view over entries, lazily
// decoded through x on first Open/Read.
func NewArchiveFS(x *Extractor, entries []zipdir.Entry) *ArchiveFS {
	m := make(map[string]zipdir.Entry, len(entries))
	for _, e := range entries {
		m[strings.TrimSuffix(e.Path, "/")] = e
	}
	return &ArchiveFS{extractor: x, entries: m}
}

func (a *ArchiveFS) Open(name string) (fs.File, error) {
	name = path.Clean(name)
	entry, ok := a.entries[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &entryFile{fs: a, entry: entry}, nil
}

func (a *ArchiveFS) Stat(name string) (fs.FileInfo, error) {
	name = path.Clean(name)
	entry, ok := a.entries[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return entryFileInfo{entry}, nil
}

// ReadDir enumerates entries sharing dir as their immediate parent
// directory, per spec §4.4's fs adapter (ReadDir on a path segment
// enumerates entries sharing that prefix).
func (a *ArchiveFS) ReadDir(dir string) ([]fs.DirEntry, error) {
	dir = path.Clean(dir)
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}
	seen := map[string]bool{}
	var out []fs.DirEntry
	for p, entry := range a.entries {
		rest := strings.TrimPrefix(p, prefix)
		if rest == p && prefix != "" {
			continue
		}
		if rest == "" {
			continue
		}
		seg, isLeaf := firstSegment(rest)
		if seen[seg] {
			continue
		}
		seen[seg] = true
		e := entry
		if !isLeaf {
			e = zipdir.Entry{Path: prefix + seg + "/", Name: seg, IsDirectory: true}
		}
		out = append(out, entryFileInfo{e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func firstSegment(rest string) (seg string, isLeaf bool) {
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx], false
	}
	return rest, true
}

type entryFileInfo struct {
	entry zipdir.Entry
}

func (i entryFileInfo) Name() string       { return i.entry.Name }
func (i entryFileInfo) Size() int64        { return int64(i.entry.UncompressedSize) }
func (i entryFileInfo) Mode() fs.FileMode {
	if i.entry.IsDirectory {
		return fs.ModeDir | 0555
	}
	return 0444
}
func (i entryFileInfo) ModTime() time.Time { return i.entry.LastModified }
func (i entryFileInfo) IsDir() bool        { return i.entry.IsDirectory }
func (i entryFileInfo) Sys() any           { return nil }

func (i entryFileInfo) Type() fs.FileMode          { return i.Mode().Type() }
func (i entryFileInfo) Info() (fs.FileInfo, error) { return i, nil }

type entryFile struct {
	fs     *ArchiveFS
	entry  zipdir.Entry
	reader *bytes.Reader
}

func (f *entryFile) ensureOpen() error {
	if f.reader != nil {
		return nil
	}
	res, err := f.fs.extractor.Extract(f.entry, Options{})
	if err != nil {
		return err
	}
	f.reader = bytes.NewReader(res.Data)
	return nil
}

func (f *entryFile) Stat() (fs.FileInfo, error) { return entryFileInfo{f.entry}, nil }

func (f *entryFile) Read(p []byte) (int, error) {
	if err := f.ensureOpen(); err != nil {
		return 0, err
	}
	return f.reader.Read(p)
}

func (f *entryFile) Close() error { return nil }

// ArchiveFSAfero adapts ArchiveFS to afero.Fs, rejecting every write
// operation with syscall.EPERM, matching the teacher's UsenetFSAfero.
type ArchiveFSAfero struct {
	*ArchiveFS
}

func ToAfero(a *ArchiveFS) *ArchiveFSAfero { return &ArchiveFSAfero{a} }

func (a *ArchiveFSAfero) Name() string { return "ArchiveFSAfero" }

func (a *ArchiveFSAfero) Open(name string) (afero.File, error) {
	f, err := a.ArchiveFS.Open(name)
	if err != nil {
		return nil, err
	}
	return &entryFileAfero{f.(*entryFile)}, nil
}

func (a *ArchiveFSAfero) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, syscall.EPERM
	}
	return a.Open(name)
}

func (a *ArchiveFSAfero) Chmod(name string, mode os.FileMode) error           { return syscall.EPERM }
func (a *ArchiveFSAfero) Chown(name string, uid, gid int) error              { return syscall.EPERM }
func (a *ArchiveFSAfero) Chtimes(name string, atime, mtime time.Time) error  { return syscall.EPERM }
func (a *ArchiveFSAfero) Create(name string) (afero.File, error)             { return nil, syscall.EPERM }
func (a *ArchiveFSAfero) Mkdir(name string, perm os.FileMode) error          { return syscall.EPERM }
func (a *ArchiveFSAfero) MkdirAll(path string, perm os.FileMode) error       { return syscall.EPERM }
func (a *ArchiveFSAfero) Remove(name string) error                          { return syscall.EPERM }
func (a *ArchiveFSAfero) RemoveAll(path string) error                       { return syscall.EPERM }
func (a *ArchiveFSAfero) Rename(oldname, newname string) error              { return syscall.EPERM }

type entryFileAfero struct {
	*entryFile
}

func (f *entryFileAfero) Name() string { return f.entry.Name }

func (f *entryFileAfero) Readdir(count int) ([]os.FileInfo, error) {
	entries, err := f.fs.ReadDir(path.Dir(f.entry.Path))
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, _ := e.Info()
		infos = append(infos, info)
	}
	return infos, nil
}

func (f *entryFileAfero) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, i := range infos {
		names = append(names, i.Name())
	}
	return names, nil
}

func (f *entryFileAfero) Sync() error { return nil }

func (f *entryFileAfero) Truncate(size int64) error { return syscall.EPERM }

func (f *entryFileAfero) Write(p []byte) (int, error) { return 0, syscall.EPERM }

func (f *entryFileAfero) WriteAt(p []byte, off int64) (int, error) { return 0, syscall.EPERM }

func (f *entryFileAfero) WriteString(s string) (int, error) { return 0, syscall.EPERM }

func (f *entryFileAfero) Seek(offset int64, whence int) (int64, error) {
	if err := f.ensureOpen(); err != nil {
		return 0, err
	}
	return f.reader.Seek(offset, whence)
}

func (f *entryFileAfero) ReadAt(p []byte, off int64) (int, error) {
	if err := f.ensureOpen(); err != nil {
		return 0, err
	}
	return f.reader.ReadAt(p, off)
}

var _ io.ReaderAt = (*entryFileAfero)(nil)
