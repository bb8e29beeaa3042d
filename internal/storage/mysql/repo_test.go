package mysql

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"tagfreq/internal/storage"
)

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	q, args, err := insertSQL("db.t", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	if err != nil {
		t.Fatalf("insertSQL: %v", err)
	}
	want := "INSERT INTO `db`.`t` (`a`, `b`) VALUES (?, ?), (?, ?)"
	if q != want {
		t.Fatalf("query = %q, want %q", q, want)
	}
	if !reflect.DeepEqual(args, []any{1, "x", 2, "y"}) {
		t.Fatalf("args = %v", args)
	}

	if _, _, err := insertSQL("t", []string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatalf("expected row length error")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := CreateTableSQL("tag_frequencies")
	if !strings.HasPrefix(got, "CREATE TABLE IF NOT EXISTS `tag_frequencies` (") {
		t.Fatalf("DDL = %s", got)
	}
	if !strings.Contains(got, "utf8mb4_bin") {
		t.Fatalf("DDL must use a case-sensitive collation: %s", got)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "no-slash-here", Table: "t"})
	if err == nil || !strings.Contains(err.Error(), "mysql dsn") {
		t.Fatalf("err = %v, want dsn error", err)
	}
}
