// Package datasource defines how the scanner reaches its input bytes.
package datasource

import (
	"context"
	"io"
)

// ReaderAtCloser is a random-access, closable byte source.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Source is an input that can be measured and opened many times. Each scan
// worker opens its own handle so one worker's reads never disturb another's.
type Source interface {
	Size(ctx context.Context) (int64, error)
	OpenReaderAt(ctx context.Context) (ReaderAtCloser, error)
}
