// Package mysql stores results in MySQL through go-sql-driver/mysql.
// CopyFrom issues one multi-row INSERT per batch inside a transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// maxPlaceholders stays below MySQL's 65535 prepared-statement limit.
const maxPlaceholders = 60000

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // e.g. "user:pass@tcp(127.0.0.1:3306)/db"
	Table string
}

// Repository is a MySQL-backed results sink.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, opens the pool and returns a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	dc.ParseTime = true
	conn, err := mysql.NewConnector(dc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows with multi-row INSERT statements in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}

	per := max(1, maxPlaceholders/len(columns))
	var total int64
	for start := 0; start < len(rows); start += per {
		chunk := rows[start:min(len(rows), start+per)]
		query, args, err := insertSQL(r.cfg.Table, columns, chunk)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// Exec executes a statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// insertSQL renders one multi-row INSERT and its flattened arguments.
func insertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", myFQN(table), strings.Join(mapIdent(columns), ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(group)
		args = append(args, row...)
	}
	return b.String(), args, nil
}

// CreateTableSQL returns the results-table DDL.
func CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"  run_id      VARCHAR(36)  NOT NULL,\n"+
		"  kind        VARCHAR(16)  NOT NULL,\n"+
		"  item        VARCHAR(512) NOT NULL,\n"+
		"  occurrences BIGINT       NOT NULL,\n"+
		"  PRIMARY KEY (run_id, kind, item)\n"+
		") CHARACTER SET utf8mb4 COLLATE utf8mb4_bin", myFQN(table))
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func myFQN(name string) string {
	parts := strings.Split(name, ".")
	return strings.Join(mapIdent(parts), ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
