// Package rpccomm is a TCP transport for collective.Comm built on net/rpc.
//
// Every rank serves a Mailbox that queues incoming frames per (sender, tag);
// rank 0 also serves the group barrier. Frames carry an xxh3 checksum that
// the receiving mailbox verifies. Peers are dialed lazily and retried until
// the dial timeout so ranks may start in any order.
package rpccomm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"tagfreq/internal/collective"
)

const (
	DefaultDialTimeout = 30 * time.Second
	DefaultLinger      = 5 * time.Second
	dialBackoff        = 100 * time.Millisecond

	mailboxService = "Mailbox"
	barrierService = "Barrier"
)

// Config describes one rank of a TCP group.
type Config struct {
	Rank  int
	Peers []string // host:port of every rank, indexed by rank
	// Listen overrides the address this rank listens on; defaults to
	// Peers[Rank]. Use it to bind 0.0.0.0 while peers dial a public name.
	Listen      string
	DialTimeout time.Duration
	MaxFrame    int64 // largest accepted frame in bytes
	// Linger bounds how long Close waits for peers to hang up, so their
	// last replies reach them before this process exits.
	Linger  time.Duration
	Verbose bool
}

func (cfg Config) withDefaults() Config {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = collective.DefaultMaxBytes
	}
	if cfg.Linger <= 0 {
		cfg.Linger = DefaultLinger
	}
	return cfg
}

// Comm is a collective.Comm over net/rpc.
type Comm struct {
	cfg  Config
	ln   net.Listener
	srv  *rpc.Server
	box  *Mailbox
	bar  *Barrier // rank 0 only
	gen  uint64   // barrier generation of this rank
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	clients map[int]*rpc.Client
	conns   map[net.Conn]struct{} // accepted, still being served
	closing bool
	serving sync.WaitGroup
}

var _ collective.Comm = (*Comm)(nil)

// New starts serving this rank and returns its Comm.
func New(cfg Config) (*Comm, error) {
	if len(cfg.Peers) == 0 {
		return nil, errors.New("rpccomm: no peers")
	}
	if err := collective.CheckPeer(cfg.Rank, len(cfg.Peers)); err != nil {
		return nil, err
	}
	addr := cfg.Listen
	if addr == "" {
		addr = cfg.Peers[cfg.Rank]
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpccomm: listen %s: %w", addr, err)
	}
	return serve(cfg, ln)
}

func serve(cfg Config, ln net.Listener) (*Comm, error) {
	cfg = cfg.withDefaults()
	c := &Comm{
		cfg:     cfg,
		ln:      ln,
		srv:     rpc.NewServer(),
		done:    make(chan struct{}),
		clients: make(map[int]*rpc.Client),
		conns:   make(map[net.Conn]struct{}),
	}
	c.box = newMailbox(len(cfg.Peers), cfg.MaxFrame, c.done)
	if err := c.srv.RegisterName(mailboxService, c.box); err != nil {
		ln.Close()
		return nil, fmt.Errorf("rpccomm: register mailbox: %w", err)
	}
	if cfg.Rank == 0 {
		c.bar = newBarrier(len(cfg.Peers))
		if err := c.srv.RegisterName(barrierService, c.bar); err != nil {
			ln.Close()
			return nil, fmt.Errorf("rpccomm: register barrier: %w", err)
		}
	}
	go c.accept()
	if cfg.Verbose {
		log.Printf("rpccomm: rank %d/%d listening on %s", cfg.Rank, len(cfg.Peers), ln.Addr())
	}
	return c, nil
}

// accept serves every incoming connection and tracks it until the peer
// hangs up, so Close can wait for in-flight replies.
func (c *Comm) accept() {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conns[conn] = struct{}{}
		c.serving.Add(1)
		c.mu.Unlock()

		go func() {
			defer c.serving.Done()
			c.srv.ServeConn(conn)
			c.mu.Lock()
			delete(c.conns, conn)
			c.mu.Unlock()
		}()
	}
}

// Addr returns the address this rank is listening on.
func (c *Comm) Addr() net.Addr { return c.ln.Addr() }

func (c *Comm) Rank() int { return c.cfg.Rank }
func (c *Comm) Size() int { return len(c.cfg.Peers) }

func (c *Comm) client(ctx context.Context, to int) (*rpc.Client, error) {
	c.mu.Lock()
	if c.clients == nil {
		c.mu.Unlock()
		return nil, collective.ErrClosed
	}
	if cl, ok := c.clients[to]; ok {
		c.mu.Unlock()
		return cl, nil
	}
	c.mu.Unlock()
	addr := c.cfg.Peers[to]

	deadline := time.Now().Add(c.cfg.DialTimeout)
	var lastErr error
	for attempt := 1; ; attempt++ {
		d := net.Dialer{Timeout: dialBackoff * 10}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			cl := rpc.NewClient(conn)
			c.mu.Lock()
			if c.clients == nil {
				c.mu.Unlock()
				cl.Close()
				return nil, collective.ErrClosed
			}
			if prev, ok := c.clients[to]; ok {
				c.mu.Unlock()
				cl.Close()
				return prev, nil
			}
			c.clients[to] = cl
			c.mu.Unlock()
			if c.cfg.Verbose {
				log.Printf("rpccomm: rank %d connected to rank %d at %s (attempt %d)", c.cfg.Rank, to, addr, attempt)
			}
			return cl, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("rpccomm: dial rank %d at %s: %w", to, addr, lastErr)
		}
		select {
		case <-time.After(dialBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, collective.ErrClosed
		}
	}
}

// call invokes method on rank to and honors ctx while the call is pending.
func (c *Comm) call(ctx context.Context, to int, method string, args, reply any) error {
	cl, err := c.client(ctx, to)
	if err != nil {
		return err
	}
	call := cl.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		return call.Error
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return collective.ErrClosed
	}
}

// Send delivers data to rank to. It returns once the peer's mailbox has
// accepted the frame, which keeps frames of one (to, tag) in order.
func (c *Comm) Send(ctx context.Context, to, tag int, data []byte) error {
	if err := collective.CheckPeer(to, c.Size()); err != nil {
		return err
	}
	env := Envelope{From: c.cfg.Rank, Tag: tag, Data: data, Sum: xxh3.Hash(data)}
	if to == c.cfg.Rank {
		var ack Ack
		return c.box.Deliver(env, &ack)
	}
	var ack Ack
	if err := c.call(ctx, to, mailboxService+".Deliver", env, &ack); err != nil {
		return fmt.Errorf("rpccomm: send to rank %d tag %d: %w", to, tag, err)
	}
	return nil
}

func (c *Comm) Recv(ctx context.Context, from, tag int) ([]byte, error) {
	if err := collective.CheckPeer(from, c.Size()); err != nil {
		return nil, err
	}
	return c.box.take(ctx, from, tag)
}

// Barrier blocks until every rank has called Barrier the same number of
// times.
func (c *Comm) Barrier(ctx context.Context) error {
	gen := c.gen
	c.gen++
	if c.cfg.Rank == 0 {
		return c.bar.wait(ctx, gen, c.done)
	}
	var reply BarrierReply
	if err := c.call(ctx, 0, barrierService+".Arrive", BarrierArgs{Rank: c.cfg.Rank, Gen: gen}, &reply); err != nil {
		return fmt.Errorf("rpccomm: barrier %d: %w", gen, err)
	}
	return nil
}

// Close stops serving and drops this rank's outgoing connections. It then
// waits up to Linger for peers to hang up before cutting their connections,
// so a reply already being written (e.g. the last barrier release) arrives.
func (c *Comm) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.bar != nil {
			c.bar.close()
		}
		err = c.ln.Close()
		c.mu.Lock()
		c.closing = true
		for _, cl := range c.clients {
			cl.Close()
		}
		c.clients = nil
		c.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			c.serving.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(c.cfg.Linger):
			c.mu.Lock()
			n := len(c.conns)
			for conn := range c.conns {
				conn.Close()
			}
			c.mu.Unlock()
			if c.cfg.Verbose {
				log.Printf("rpccomm: rank %d dropped %d peers still connected after %s", c.cfg.Rank, n, c.cfg.Linger)
			}
			<-drained
		}
	})
	return err
}
