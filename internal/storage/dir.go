package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fileutil "britearchive/internal/file"
)

// Dir keeps the archive in a local directory. Used offline and by tests.
type Dir struct {
	root string
}

var _ Client = (*Dir)(nil)

func NewDir(root string) (*Dir, error) {
	if err := fileutil.EnsureDir(root); err != nil {
		return nil, err
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

func (d *Dir) Info(_ context.Context, name string) (*FileInfo, error) {
	p := d.path(name)
	st, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	sum, size, err := fileutil.MD5(p)
	if err != nil {
		return nil, err
	}
	return &FileInfo{Name: filepath.Base(name), Size: size, MD5: sum, LastModified: st.ModTime()}, nil
}

func (d *Dir) Put(_ context.Context, localPath, name string) error {
	in, err := os.Open(localPath) //nolint:gosec // path comes from the work list
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = in.Close() }()
	return fileutil.CopyAtomic(d.path(name), in) //nolint:wrapcheck
}

func (d *Dir) Get(_ context.Context, name string, w io.Writer) error {
	in, err := os.Open(d.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = in.Close() }()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

func (d *Dir) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := d.Info(ctx, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
