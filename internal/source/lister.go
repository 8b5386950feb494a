package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"britearchive/internal/storage"
)

// Entry is one item from a directory or namespace listing.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	IsDir   bool
}

// Lister enumerates the entries under one configured root.
type Lister interface {
	List(ctx context.Context, root string) ([]Entry, error)
}

// DirLister reads a local directory, optionally descending into subdirectories.
type DirLister struct {
	Recursive bool
}

func (l DirLister) List(ctx context.Context, root string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		p := filepath.Join(root, de.Name())
		if de.IsDir() {
			out = append(out, Entry{Name: de.Name(), Path: p, IsDir: true})
			if l.Recursive {
				nested, err := l.List(ctx, p)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
			}
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		out = append(out, Entry{Name: de.Name(), Path: p, ModTime: info.ModTime()})
	}
	return out, nil
}

// BucketLister lists the archive namespace. Entry paths are object names.
type BucketLister struct {
	Store storage.Client
}

func (l BucketLister) List(ctx context.Context, prefix string) ([]Entry, error) {
	if prefix == "." {
		prefix = ""
	}
	objects, err := l.Store.List(ctx, prefix)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	out := make([]Entry, 0, len(objects))
	for _, o := range objects {
		out = append(out, Entry{Name: filepath.Base(o.Name), Path: o.Name, ModTime: o.LastModified})
	}
	return out, nil
}
