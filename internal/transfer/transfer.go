// Package transfer moves flat files between the service and SAP's exchange area.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrDirNotFound means a configured remote directory does not exist.
	// It is a configuration problem and is not retried.
	ErrDirNotFound = errors.New("remote directory not found")
	// ErrTransfer wraps failures while moving bytes; the run may be retried.
	ErrTransfer = errors.New("transfer failed")
)

// FileInfo describes one remote file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Writer is an upload in progress. Close publishes the file under its final
// name; Abort discards everything written so nothing is published.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Channel is a file-transfer session. Paths are slash separated.
type Channel interface {
	Exists(ctx context.Context, p string) (bool, error)
	Create(ctx context.Context, p string) (Writer, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Close() error
}

// Dialer opens a new session. Jobs dial once per run and close when done.
type Dialer func(ctx context.Context) (Channel, error)

// Put writes data to dir/name after checking that dir exists.
func Put(ctx context.Context, ch Channel, dir, name string, data []byte) error {
	ok, err := ch.Exists(ctx, dir)
	if err != nil {
		return fmt.Errorf("checking %s: %w: %w", dir, ErrTransfer, err)
	}

	if !ok {
		return fmt.Errorf("%s: %w", dir, ErrDirNotFound)
	}

	p := path.Join(dir, name)

	w, err := ch.Create(ctx, p)
	if err != nil {
		if errors.Is(err, ErrDirNotFound) {
			return err
		}

		return fmt.Errorf("creating %s: %w: %w", p, ErrTransfer, err)
	}

	if _, err := w.Write(data); err != nil {
		if aerr := w.Abort(); aerr != nil {
			return fmt.Errorf("writing %s: %w: %w (abort: %w)", p, ErrTransfer, err, aerr)
		}

		return fmt.Errorf("writing %s: %w: %w", p, ErrTransfer, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w: %w", p, ErrTransfer, err)
	}

	return nil
}

// Get reads a whole remote file.
func Get(ctx context.Context, ch Channel, p string) ([]byte, error) {
	r, err := ch.Open(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", p, ErrTransfer, err)
	}

	return data, nil
}

// ListDir lists dir, reporting a missing directory as ErrDirNotFound.
func ListDir(ctx context.Context, ch Channel, dir string) ([]FileInfo, error) {
	ok, err := ch.Exists(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w: %w", dir, ErrTransfer, err)
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrDirNotFound)
	}

	files, err := ch.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	return files, nil
}

// Clean normalises a remote path, dropping any leading slash.
func Clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
