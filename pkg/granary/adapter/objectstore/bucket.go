// Package objectstore deletes the stored file objects backing granule
// files, via gocloud.dev blob buckets.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

const moduleName = "objectstore"

// Deleter removes file objects from their buckets. Granule files name
// their own bucket, so the configured URL acts as a template: its host is
// replaced with the file's bucket name. Opened buckets are cached for the
// lifetime of the deleter.
type Deleter struct {
	baseURL *url.URL

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

func NewDeleter(bucketURL string) (*Deleter, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, exception.NewWriteErrorf(moduleName, "invalid bucket URL %q", bucketURL)
	}
	return &Deleter{
		baseURL: u,
		buckets: make(map[string]*blob.Bucket),
	}, nil
}

var _ ports.ObjectStore = (*Deleter)(nil)

func (d *Deleter) bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buckets[name]; ok {
		return b, nil
	}
	u := *d.baseURL
	u.Host = name
	b, err := blob.OpenBucket(ctx, u.String())
	if err != nil {
		return nil, exception.NewWriteError(moduleName, fmt.Sprintf("failed to open bucket %q", name), err)
	}
	d.buckets[name] = b
	return b, nil
}

// DeleteObject removes the object. Deleting an absent object is a no-op so
// a re-driven deletion stays idempotent.
func (d *Deleter) DeleteObject(ctx context.Context, bucket, key string) error {
	b, err := d.bucket(ctx, bucket)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			logger.Debugf("object %s/%s already absent", bucket, key)
			return nil
		}
		return exception.NewWriteError(moduleName, fmt.Sprintf("failed to delete object %s/%s", bucket, key), err)
	}
	return nil
}

// Close releases every cached bucket.
func (d *Deleter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for name, b := range d.buckets {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.buckets, name)
	}
	return firstErr
}
