package main

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"payto"
)

func TestCleanupClosesCurrentApp(t *testing.T) {
	db, err := payto.OpenDB(filepath.Join(t.TempDir(), "payto.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	var closed int
	a := &app{db: db, logger: payto.NewZapLoggerFrom(zap.NewNop())}
	a.closers = append(a.closers, func() {
		closed++
		db.Close()
	})
	current = a

	cleanup()
	if closed != 1 {
		t.Fatalf("closers ran %d times, want 1", closed)
	}
	if current != nil {
		t.Fatalf("current app still set after cleanup")
	}
	if err := db.Ping(); err == nil {
		t.Fatalf("database still open")
	}

	// A deferred close after cleanup must not run the closers again.
	a.close()
	cleanup()
	if closed != 1 {
		t.Fatalf("closers ran %d times after second close", closed)
	}
}
