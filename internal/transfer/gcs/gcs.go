// Package gcs exchanges files through a Cloud Storage bucket. Directories are
// object name prefixes; a directory exists when at least one object, such as
// the "dir/" placeholder the console creates, lives under it.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/mnshuhailey/ppa-sap/internal/transfer"
)

type Channel struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// New uses Application Default Credentials. prefix is prepended to every path.
func New(ctx context.Context, bucket, prefix string) (*Channel, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Channel{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: transfer.Clean(prefix),
	}, nil
}

func (c *Channel) object(p string) string {
	return transfer.Clean(path.Join(c.prefix, p))
}

func (c *Channel) Exists(ctx context.Context, p string) (bool, error) {
	name := c.object(p)

	_, err := c.bucket.Object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}

	if !errors.Is(err, storage.ErrObjectNotExist) {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}

	it := c.bucket.Objects(ctx, &storage.Query{Prefix: name + "/"})

	_, err = it.Next()
	if err == iterator.Done {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("list %s: %w", name, err)
	}

	return true, nil
}

// Create uploads under a cancellable context; an object is only finalised by
// Close, and Abort cancels the upload instead.
func (c *Channel) Create(ctx context.Context, p string) (transfer.Writer, error) {
	ctx, cancel := context.WithCancel(ctx)

	w := c.bucket.Object(c.object(p)).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	return &objectWriter{Writer: w, cancel: cancel}, nil
}

type objectWriter struct {
	*storage.Writer
	cancel context.CancelFunc
}

func (w *objectWriter) Close() error {
	defer w.cancel()

	return w.Writer.Close()
}

func (w *objectWriter) Abort() error {
	w.cancel()
	// Close after cancel reports the cancellation and leaves no object.
	_ = w.Writer.Close()

	return nil
}

func (c *Channel) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	name := c.object(p)

	r, err := c.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("open GCS object %s: %w", name, fs.ErrNotExist)
		}

		return nil, fmt.Errorf("open GCS object %s: %w", name, err)
	}

	return r, nil
}

func (c *Channel) List(ctx context.Context, dir string) ([]transfer.FileInfo, error) {
	prefix := c.object(dir) + "/"

	it := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var files []transfer.FileInfo

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}

		name := strings.TrimPrefix(attrs.Name, prefix)
		if attrs.Prefix != "" || name == "" {
			continue
		}

		files = append(files, transfer.FileInfo{
			Name:    name,
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

func (c *Channel) Close() error {
	return c.client.Close()
}
