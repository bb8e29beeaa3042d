package rpccomm

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"

	"tagfreq/internal/collective"
)

// Envelope is one frame on the wire.
type Envelope struct {
	From int
	Tag  int
	Data []byte
	Sum  uint64 // xxh3 of Data
}

// Ack acknowledges a delivered frame. gob needs at least one exported field.
type Ack struct{ Queued int }

type boxKey struct{ from, tag int }

type queue struct {
	items [][]byte
	ready chan struct{} // signalled when items grows
}

// Mailbox queues incoming frames per (sender, tag). Its only exported
// method is the RPC entry point.
type Mailbox struct {
	size     int
	maxFrame int64
	done     <-chan struct{}

	mu     sync.Mutex
	queues map[boxKey]*queue
}

func newMailbox(size int, maxFrame int64, done <-chan struct{}) *Mailbox {
	return &Mailbox{size: size, maxFrame: maxFrame, done: done, queues: make(map[boxKey]*queue)}
}

func (m *Mailbox) queue(k boxKey) *queue {
	q, ok := m.queues[k]
	if !ok {
		q = &queue{ready: make(chan struct{}, 1)}
		m.queues[k] = q
	}
	return q
}

// Deliver accepts one frame from a peer.
func (m *Mailbox) Deliver(env Envelope, ack *Ack) error {
	if err := collective.CheckPeer(env.From, m.size); err != nil {
		return err
	}
	if int64(len(env.Data)) > m.maxFrame {
		return fmt.Errorf("%w: %d bytes from rank %d", collective.ErrFrameTooLarge, len(env.Data), env.From)
	}
	if sum := xxh3.Hash(env.Data); sum != env.Sum {
		return fmt.Errorf("%w: checksum mismatch from rank %d tag %d", collective.ErrMalformedFrame, env.From, env.Tag)
	}

	m.mu.Lock()
	q := m.queue(boxKey{env.From, env.Tag})
	q.items = append(q.items, env.Data)
	ack.Queued = len(q.items)
	m.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

func (m *Mailbox) take(ctx context.Context, from, tag int) ([]byte, error) {
	k := boxKey{from, tag}
	for {
		m.mu.Lock()
		q := m.queue(k)
		if len(q.items) > 0 {
			data := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			m.mu.Unlock()
			return data, nil
		}
		m.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("recv from rank %d tag %d: %w", from, tag, ctx.Err())
		case <-m.done:
			return nil, collective.ErrClosed
		}
	}
}
