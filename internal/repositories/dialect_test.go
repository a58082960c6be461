package repositories

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestParseDialect(t *testing.T) {
	for _, in := range []string{"mysql", "PGX", " sqlite "} {
		if _, err := ParseDialect(in); err != nil {
			t.Errorf("%q: %v", in, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT 1 FROM t WHERE a = ? AND b = ?`
	if got := DialectPostgres.rebind(q); got != `SELECT 1 FROM t WHERE a = $1 AND b = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	if got := DialectMySQL.rebind(q); got != q {
		t.Errorf("mysql rebind changed query: %q", got)
	}
}

func TestNullTimeScan(t *testing.T) {
	want := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := []any{
		want,
		"2030-01-01 00:00:00",
		[]byte("2030-01-01T00:00:00Z"),
		"2030-01-01 03:00:00+03:00",
	}
	for _, in := range inputs {
		var nt nullTime
		if err := nt.Scan(in); err != nil {
			t.Fatalf("scan %v: %v", in, err)
		}
		if !nt.Valid || !nt.Time.Equal(want) {
			t.Errorf("scan %v = %v", in, nt.Time)
		}
	}

	var nt nullTime
	if err := nt.Scan(nil); err != nil || nt.Valid || nt.ptr() != nil {
		t.Errorf("nil scan: %+v %v", nt, err)
	}
	if err := nt.Scan("yesterday"); err == nil {
		t.Error("expected error for garbage timestamp")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"mysql 1452", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1452}), true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"postgres", &pgconn.PgError{Code: "23503"}, true},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsForeignKeyViolation(tt.err); got != tt.want {
			t.Errorf("%s: got %v", tt.name, got)
		}
	}
}
