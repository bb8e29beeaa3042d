package collective

import (
	"context"
	"fmt"
	"log"
	"time"

	"tagfreq/internal/freq"
	"tagfreq/internal/metrics"
)

// ReduceOptions tunes Reduce.
type ReduceOptions struct {
	Limits  Limits
	Job     string // metrics job label
	Verbose bool
}

// Reduce combines the local pair of every rank into rank 0.
//
// Each round follows Plan: receivers merge the peer's pair into their own,
// senders hand theirs over, and every rank waits on a barrier before the next
// round. Rank 0 returns the group total. A rank that sent its pair returns an
// empty pair, since its counts now live with the receiver.
func Reduce(ctx context.Context, c Comm, local freq.Pair, opts ReduceOptions) (freq.Pair, error) {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits(0)
	}
	acc := local
	for _, rd := range Plan(c.Rank(), c.Size()) {
		start := time.Now()
		err := runRound(ctx, c, rd, &acc, opts)
		if err == nil {
			err = c.Barrier(ctx)
		}
		metrics.RecordStep(opts.Job, "reduce_round", err, time.Since(start))
		if err != nil {
			return freq.Pair{}, fmt.Errorf("reduce round s=%d (%s): %w", rd.S, rd.Role, err)
		}
	}
	return acc, nil
}

func runRound(ctx context.Context, c Comm, rd Round, acc *freq.Pair, opts ReduceOptions) error {
	switch rd.Role {
	case RoleReceive:
		p, err := RecvPair(ctx, c, rd.Peer, opts.Limits)
		if err != nil {
			return err
		}
		metrics.RecordFrames(opts.Job, "received", 2*framesPerTable)
		if opts.Verbose {
			log.Printf("reduce: s=%d received %d langs, %d hashtags from rank %d", rd.S, len(p.Lang), len(p.Tags), rd.Peer)
		}
		acc.Merge(p)
	case RoleSend:
		if err := SendPair(ctx, c, rd.Peer, *acc); err != nil {
			return err
		}
		metrics.RecordFrames(opts.Job, "sent", 2*framesPerTable)
		if opts.Verbose {
			log.Printf("reduce: s=%d sent %d langs, %d hashtags to rank %d", rd.S, len(acc.Lang), len(acc.Tags), rd.Peer)
		}
		*acc = freq.NewPair()
	}
	return nil
}
