package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spaghettifunk/chewman/engine/core"
)

// FileSystem is the virtual file system every resource is read through.
// Paths are slash separated and relative to the root of the file system.
type FileSystem interface {
	fs.FS
	// FolderList returns every regular file below folder, sorted.
	FolderList(folder string) ([]string, error)
	FileContent(name string) ([]byte, error)
	Exists(name string) bool
	IsDir(name string) bool
	// SavePath is a writable OS directory for persisted blobs.
	SavePath() string
	// ReadSaved returns a blob stored with WriteSaved, or an error wrapping
	// core.ErrNotFound.
	ReadSaved(name string) ([]byte, error)
	// WriteSaved replaces the blob called name under SavePath.
	WriteSaved(name string, data []byte) error
}

/** @brief FileSystem backed by an fs.FS. */
type FS struct {
	fsys     fs.FS
	root     string
	savePath string
	// saved blobs when there is no save path
	saved map[string][]byte
}

// NewDesktopFS serves files from the root directory on disk. Persisted blobs
// go to savePath, created on demand.
func NewDesktopFS(root, savePath string) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("resource root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource root %s is not a directory", root)
	}
	if err := os.MkdirAll(savePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save path %s: %w", savePath, err)
	}
	return &FS{fsys: os.DirFS(root), root: root, savePath: savePath}, nil
}

// NewMemoryFS serves files from an in-memory tree such as fstest.MapFS.
func NewMemoryFS(fsys fs.FS, savePath string) *FS {
	return &FS{fsys: fsys, savePath: savePath}
}

func clean(name string) string {
	name = path.Clean(filepath.ToSlash(name))
	return strings.TrimPrefix(name, "./")
}

func (f *FS) Open(name string) (fs.File, error) {
	return f.fsys.Open(clean(name))
}

func (f *FS) FolderList(folder string) ([]string, error) {
	folder = clean(folder)
	var files []string
	err := fs.WalkDir(f.fsys, folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("folder %s: %w", folder, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *FS) FileContent(name string) ([]byte, error) {
	data, err := fs.ReadFile(f.fsys, clean(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", name, core.ErrNotFound)
	}
	return data, err
}

func (f *FS) Exists(name string) bool {
	_, err := fs.Stat(f.fsys, clean(name))
	return err == nil
}

func (f *FS) IsDir(name string) bool {
	info, err := fs.Stat(f.fsys, clean(name))
	return err == nil && info.IsDir()
}

func (f *FS) SavePath() string {
	return f.savePath
}

func (f *FS) savedPath(name string) string {
	return filepath.Join(f.savePath, filepath.FromSlash(clean(name)))
}

func (f *FS) ReadSaved(name string) ([]byte, error) {
	if f.savePath == "" {
		data, ok := f.saved[clean(name)]
		if !ok {
			return nil, fmt.Errorf("saved file %s: %w", name, core.ErrNotFound)
		}
		return append([]byte(nil), data...), nil
	}
	data, err := os.ReadFile(f.savedPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("saved file %s: %w", name, core.ErrNotFound)
	}
	return data, err
}

// WriteSaved replaces the blob through a temporary file and a rename.
func (f *FS) WriteSaved(name string, data []byte) error {
	if f.savePath == "" {
		if f.saved == nil {
			f.saved = make(map[string][]byte)
		}
		f.saved[clean(name)] = append([]byte(nil), data...)
		return nil
	}
	target := f.savedPath(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create save path %s: %w", f.savePath, err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// LocalPath maps name to a path on disk. It fails for in-memory trees.
func (f *FS) LocalPath(name string) (string, bool) {
	if f.root == "" {
		return "", false
	}
	return filepath.Join(f.root, filepath.FromSlash(clean(name))), true
}

// ResolvePath resolves a filename found in a settings file against the
// folder of that file.
func ResolvePath(settingsFile, filename string) string {
	if filename == "" || path.IsAbs(filename) {
		return filename
	}
	return clean(path.Join(path.Dir(clean(settingsFile)), filename))
}
