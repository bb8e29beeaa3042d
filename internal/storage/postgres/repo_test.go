package postgres

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"tagfreq/internal/storage"
)

func TestSplitFQN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want pgx.Identifier
	}{
		{"tag_frequencies", pgx.Identifier{"tag_frequencies"}},
		{"public.tag_frequencies", pgx.Identifier{"public", "tag_frequencies"}},
		{"a..b", pgx.Identifier{"a", "b"}},
	}
	for _, tc := range tests {
		if got := splitFQN(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("splitFQN(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := CreateTableSQL(`public.we"ird`)
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "public"."we""ird" (`) {
		t.Fatalf("DDL = %s", got)
	}
	for _, col := range storage.ResultColumns {
		if !strings.Contains(got, col) {
			t.Fatalf("DDL missing column %s", col)
		}
	}
}

func TestRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	wantErr := errors.New("no server")
	var gotCfg Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return nil, nil, wantErr
	}
	_, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x", Table: "t"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if gotCfg.DSN != "postgres://x" || gotCfg.Table != "t" {
		t.Fatalf("cfg = %+v", gotCfg)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "postgres://%zz", Table: "t"})
	if err == nil || !strings.Contains(err.Error(), "postgres dsn") {
		t.Fatalf("err = %v, want dsn error", err)
	}
}
