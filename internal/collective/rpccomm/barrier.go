package rpccomm

import (
	"context"
	"sync"

	"tagfreq/internal/collective"
)

// BarrierArgs identifies an arriving rank and its barrier generation.
type BarrierArgs struct {
	Rank int
	Gen  uint64
}

// BarrierReply is sent when the generation is released.
type BarrierReply struct{ Gen uint64 }

// Barrier is the group barrier hosted by rank 0.
type Barrier struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64 // generation currently filling
	arrived int
	closed  bool
}

func newBarrier(size int) *Barrier {
	b := &Barrier{size: size}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Arrive blocks until every rank has arrived at generation args.Gen.
func (b *Barrier) Arrive(args BarrierArgs, reply *BarrierReply) error {
	if err := collective.CheckPeer(args.Rank, b.size); err != nil {
		return err
	}
	reply.Gen = args.Gen
	return b.arrive(args.Gen)
}

func (b *Barrier) arrive(gen uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen < b.gen {
		return nil
	}
	b.arrived++
	if b.arrived == b.size {
		b.gen++
		b.arrived = 0
		b.cond.Broadcast()
		return nil
	}
	for b.gen == gen && !b.closed {
		b.cond.Wait()
	}
	if b.gen == gen {
		return collective.ErrClosed
	}
	return nil
}

// wait is rank 0's local arrival; it gives up when ctx or done ends first.
func (b *Barrier) wait(ctx context.Context, gen uint64, done <-chan struct{}) error {
	errc := make(chan error, 1)
	go func() { errc <- b.arrive(gen) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return collective.ErrClosed
	}
}

func (b *Barrier) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
