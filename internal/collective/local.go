package collective

import (
	"context"
	"fmt"
	"sync"
)

// mailboxDepth is the buffer of one (from, to, tag) queue.
const mailboxDepth = 16

type mailKey struct{ from, to, tag int }

// LocalGroup is an in-memory group of size ranks inside one process.
type LocalGroup struct {
	size int

	mu     sync.Mutex
	boxes  map[mailKey]chan []byte
	closed chan struct{}
	once   sync.Once

	bmu     sync.Mutex
	arrived int
	release chan struct{}
}

// NewLocalGroup returns an in-memory group. Use Comm to get each rank's view.
func NewLocalGroup(size int) *LocalGroup {
	if size < 1 {
		size = 1
	}
	return &LocalGroup{
		size:    size,
		boxes:   make(map[mailKey]chan []byte),
		closed:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Size returns the number of ranks.
func (g *LocalGroup) Size() int { return g.size }

// Comm returns rank's endpoint.
func (g *LocalGroup) Comm(rank int) Comm {
	return &localComm{g: g, rank: rank}
}

// Close fails every pending and future operation with ErrClosed.
func (g *LocalGroup) Close() error {
	g.once.Do(func() { close(g.closed) })
	return nil
}

func (g *LocalGroup) box(k mailKey) chan []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.boxes[k]
	if !ok {
		ch = make(chan []byte, mailboxDepth)
		g.boxes[k] = ch
	}
	return ch
}

func (g *LocalGroup) barrier(ctx context.Context) error {
	g.bmu.Lock()
	ch := g.release
	g.arrived++
	if g.arrived == g.size {
		g.arrived = 0
		g.release = make(chan struct{})
		close(ch)
		g.bmu.Unlock()
		return nil
	}
	g.bmu.Unlock()

	select {
	case <-ch:
		return nil
	case <-g.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type localComm struct {
	g    *LocalGroup
	rank int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.g.size }

func (c *localComm) Send(ctx context.Context, to, tag int, data []byte) error {
	if err := CheckPeer(to, c.g.size); err != nil {
		return err
	}
	msg := append([]byte(nil), data...)
	select {
	case c.g.box(mailKey{from: c.rank, to: to, tag: tag}) <- msg:
		return nil
	case <-c.g.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *localComm) Recv(ctx context.Context, from, tag int) ([]byte, error) {
	if err := CheckPeer(from, c.g.size); err != nil {
		return nil, err
	}
	select {
	case msg := <-c.g.box(mailKey{from: from, to: c.rank, tag: tag}):
		return msg, nil
	case <-c.g.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("recv from rank %d tag %d: %w", from, tag, ctx.Err())
	}
}

func (c *localComm) Barrier(ctx context.Context) error { return c.g.barrier(ctx) }

// Close is a no-op for one rank; close the group to stop everyone.
func (c *localComm) Close() error { return nil }
