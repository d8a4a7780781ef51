package store

import (
	"context"
	"testing"
)

func TestNewDBSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, "sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if !db.Healthy(ctx) {
		t.Error("sqlite database reported unhealthy")
	}
	if db.Driver != "sqlite3" {
		t.Errorf("Driver = %q", db.Driver)
	}
}

func TestNewDBUnsupportedDriver(t *testing.T) {
	if _, err := NewDB(context.Background(), "mysql", ""); err == nil {
		t.Error("NewDB(mysql) succeeded")
	}
}

func TestNilHandles(t *testing.T) {
	ctx := context.Background()
	var db *DB
	if db.Healthy(ctx) || db.Close() != nil {
		t.Error("nil DB should be unhealthy and close cleanly")
	}
	r := NewRedis("")
	if r != nil || r.Healthy(ctx) || r.Raw() != nil || r.Close() != nil {
		t.Error("empty redis address should yield a nil, unhealthy client")
	}
}
