package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLFunc renders the backend's CREATE TABLE statement for the results
// table. The statement must be idempotent.
type DDLFunc func(table string) string

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLFunc{}
)

// RegisterDDL registers (or replaces) the results-table DDL for kind.
func RegisterDDL(kind string, fn DDLFunc) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates the results table for kind if it does not exist.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL registered for storage.kind=%q", kind)
	}
	if err := repo.Exec(ctx, fn(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}
