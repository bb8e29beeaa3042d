// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"os"

	"tagfreq/internal/datasource"
)

// Local is a filesystem data source bound to one path. It is safe for
// concurrent use; every OpenReaderAt call returns an independent handle.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

// NewLocal returns a Local data source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Size returns the file length in bytes. Errors wrap the os error so callers
// can still use errors.Is(err, os.ErrNotExist).
func (l *Local) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := os.Stat(l.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		return 0, fmt.Errorf("stat %s: is a directory", l.path)
	}
	return st.Size(), nil
}

// OpenReaderAt opens a read-only handle and hints the kernel that it will be
// read sequentially.
func (l *Local) OpenReaderAt(ctx context.Context) (datasource.ReaderAtCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
