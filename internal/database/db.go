package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/resource-booking/internal/config"
)

// DSN renders cfg as a go-sql-driver data source name. Timestamps are
// scanned into time.Time and interpreted as UTC.
func DSN(cfg config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.Collation = "utf8mb4_unicode_ci"
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = 5 * time.Second
	return mc.FormatDSN()
}

// Open connects with the pool limits from cfg.
func Open(cfg config.Config) (*sql.DB, error) {
	db, err := OpenDSN(DSN(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxConns)
		db.SetMaxIdleConns(cfg.DBMaxConns)
	}
	if cfg.DBConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.DBConnLifetime)
	}
	return db, nil
}

// OpenDSN opens dsn and pings it before returning.
func OpenDSN(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
