// Package storage persists final frequency tables to a SQL database.
//
// Backends register a Factory for their kind at init time; import
// tagfreq/internal/storage/all to enable every built-in backend. Callers stay
// backend-agnostic and talk to the Repository interface only.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind    string // sqlite, postgres, mssql, mysql
	DSN     string
	Table   string
	Columns []string
}

// Repository is the minimal contract every backend implements.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number of
	// rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Backend is a Repository without Close; the opener hands back the cleanup
// separately.
type Backend interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
}

// Opener opens a backend and returns the func that releases it.
type Opener[B Backend] func(ctx context.Context, cfg Config) (B, func(), error)

type released struct {
	Backend
	release func()
}

func (r released) Close() {
	if r.release != nil {
		r.release()
	}
}

// RegisterBackend registers open and the results-table DDL under kind.
func RegisterBackend[B Backend](kind string, open Opener[B], ddl DDLFunc) {
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		b, release, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return released{Backend: b, release: release}, nil
	})
	RegisterDDL(kind, ddl)
}
