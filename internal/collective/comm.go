// Package collective combines per-process frequency tables into one result
// at rank 0.
//
// Processes talk through a Comm: tagged point-to-point messages between ranks
// plus a group-wide barrier. Reduce runs a binary-tree reduction over a Comm;
// each table travels as four frames (see codec.go). NewLocalGroup provides an
// in-memory Comm for single-process runs and tests, and package rpccomm a
// TCP transport for real multi-process runs.
package collective

import (
	"context"
	"errors"
	"fmt"
)

// Comm is one rank's view of a cooperating group.
//
// Messages between a given (from, to, tag) triple are delivered in order.
// Send may return before the peer has received the message.
type Comm interface {
	Rank() int
	Size() int
	Send(ctx context.Context, to, tag int, data []byte) error
	Recv(ctx context.Context, from, tag int) ([]byte, error)
	// Barrier returns once every rank of the group has entered it.
	Barrier(ctx context.Context) error
	Close() error
}

// ErrClosed is returned by operations on a closed Comm.
var ErrClosed = errors.New("collective: comm closed")

// CheckPeer validates a peer rank for a group of size.
func CheckPeer(peer, size int) error {
	if peer < 0 || peer >= size {
		return fmt.Errorf("collective: peer rank %d out of range [0,%d)", peer, size)
	}
	return nil
}
