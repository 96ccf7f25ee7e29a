package database

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/resource-booking/internal/config"
)

func TestStatements_CoverAllTables(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stmts))
	}
	for i, table := range []string{"users", "refresh_tokens", "resources", "bookings"} {
		if !strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("statement %d does not create %s: %.60s", i, table, stmts[i])
		}
	}
}

func TestMigrate_ExecutesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "refresh_tokens", "resources", "bookings"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table + " ")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDSN(t *testing.T) {
	cfg := config.Config{DBUser: "u", DBPass: "p", DBHost: "db", DBPort: "3306", DBName: "booking"}
	mc, err := mysql.ParseDSN(DSN(cfg))
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if mc.User != "u" || mc.Passwd != "p" || mc.Addr != "db:3306" || mc.DBName != "booking" {
		t.Fatalf("parsed = %+v", mc)
	}
	if !mc.ParseTime || mc.Loc != time.UTC {
		t.Fatalf("time handling: parseTime=%v loc=%v", mc.ParseTime, mc.Loc)
	}

	cfg.DBPass = ""
	if got := DSN(cfg); !strings.HasPrefix(got, "u@tcp(db:3306)/") {
		t.Fatalf("DSN without password = %q", got)
	}
}
