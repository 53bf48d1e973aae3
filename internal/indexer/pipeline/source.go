package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/keinsell/zkk/internal/constants"
)

// Entry is one document offered by a Source.
type Entry struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Source yields the documents of a corpus. Paths are absolute.
type Source interface {
	List(ctx context.Context) ([]Entry, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// DirSource lists markdown files below Root, skipping hidden directories.
type DirSource struct {
	Root       string
	Extensions []string
}

func (s DirSource) List(ctx context.Context) ([]Entry, error) {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = constants.MarkdownExtensions
	}
	var entries []Entry
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.Root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExtension(path, exts) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, err
}

func (s DirSource) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// resolveRoot makes root absolute and follows symlinks so stored paths are
// stable between runs.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}
