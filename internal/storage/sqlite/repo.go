// Package sqlite stores results in an SQLite file through the pure-Go
// modernc driver, so the binary needs no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	DSN   string // "results.db" or "file:results.db?_pragma=busy_timeout(5000)"
	Table string
}

// Repository inserts result rows with a prepared statement, one transaction
// per batch. SQLite has no bulk-load path that beats that.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository opens and pings the database. The returned func closes it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errors.New("sqlite: empty DSN")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open %s: %w", cfg.DSN, err)
	}
	// One writer; a larger pool only adds SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table}, func() { db.Close() }, nil
}

func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (n int64, err error) {
	switch {
	case len(columns) == 0:
		return 0, errors.New("sqlite: no columns")
	case len(rows) == 0:
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSQL(r.table, columns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("sqlite: row %d: row length %d, want %d", i, len(row), len(columns))
		}
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: row %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return int64(len(rows)), nil
}

func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, stmt)
	return err
}

func insertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quote(c)
	}
	marks := strings.Repeat("?, ", len(columns))
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteFQN(table), strings.Join(cols, ", "), marks[:len(marks)-2])
}

// CreateTableSQL renders the results-table DDL.
func CreateTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quoteFQN(table) + ` (
  run_id      TEXT    NOT NULL,
  kind        TEXT    NOT NULL,
  item        TEXT    NOT NULL,
  occurrences INTEGER NOT NULL,
  PRIMARY KEY (run_id, kind, item)
)`
}

func quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// quoteFQN quotes each dotted part, so "main.t" stays schema-qualified.
func quoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = quote(parts[i])
	}
	return strings.Join(parts, ".")
}
