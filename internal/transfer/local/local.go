// Package local serves transfer paths from a directory on disk, for shared
// mounts and tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mnshuhailey/ppa-sap/internal/transfer"
)

type Channel struct {
	root string
}

func New(root string) (*Channel, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening local root %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("local root %s is not a directory", root)
	}

	return &Channel{root: root}, nil
}

func (c *Channel) abs(p string) string {
	return filepath.Join(c.root, filepath.FromSlash(transfer.Clean(p)))
}

func (c *Channel) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(c.abs(p))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// Create writes through a temporary sibling that is renamed into place on Close,
// so readers never see a partial file.
func (c *Channel) Create(_ context.Context, p string) (transfer.Writer, error) {
	target := c.abs(p)

	f, err := os.CreateTemp(filepath.Dir(target), ".part-*")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Dir(p), transfer.ErrDirNotFound)
		}

		return nil, err
	}

	return &atomicFile{File: f, target: target}, nil
}

func (c *Channel) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return os.Open(c.abs(p))
}

func (c *Channel) List(_ context.Context, dir string) ([]transfer.FileInfo, error) {
	entries, err := os.ReadDir(c.abs(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, transfer.ErrDirNotFound)
		}

		return nil, err
	}

	files := make([]transfer.FileInfo, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		files = append(files, transfer.FileInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

func (c *Channel) Close() error { return nil }

type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.Chmod(0o644); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.Name())
		return err
	}

	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	if err := os.Rename(f.Name(), f.target); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	return nil
}

// Abort drops the temporary file without publishing it.
func (f *atomicFile) Abort() error {
	_ = f.File.Close()

	if err := os.Remove(f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}
