package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

func TestQueryLoggerOnlyReportsSlowOrFailed(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 50*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	q.Trace(ctx, time.Now(), stmt, nil)
	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected fast and not-found queries to be silent, got %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), `"sql":"SELECT 1"`) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("relation missing"))
	if !strings.Contains(buf.String(), "query failed") || !strings.Contains(buf.String(), "relation missing") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}
}

func TestDialectorForDriver(t *testing.T) {
	for driver, want := range map[string]string{"": "postgres", "postgres": "postgres", "sqlite": "sqlite"} {
		d, err := dialectorFor(config.DBConfig{DSN: "x", Driver: driver})
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if d.Name() != want {
			t.Fatalf("driver %q: expected %s dialector, got %s", driver, want, d.Name())
		}
	}
	if _, err := dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
