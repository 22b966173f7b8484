package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := client.SetNX(ctx, client.LockKey("cron"), "owner-a", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to win, got %v err=%v", first, err)
	}
	second, err := client.SetNX(ctx, client.LockKey("cron"), "owner-b", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second SetNX to lose, got %v err=%v", second, err)
	}
	owner, err := client.Get(ctx, client.LockKey("cron"))
	if err != nil || owner != "owner-a" {
		t.Fatalf("expected owner-a, got %q err=%v", owner, err)
	}

	if err := client.Del(ctx, client.LockKey("cron")); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, client.LockKey("cron")); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestOwnerCheckedLockMaintenance(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron-worker:dev")

	if ok, err := client.SetNX(ctx, key, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if ok, err := client.ExtendIfOwner(ctx, key, "owner-b", time.Minute); err != nil || ok {
		t.Fatalf("foreign owner must not extend: ok=%v err=%v", ok, err)
	}
	if ok, err := client.ExtendIfOwner(ctx, key, "owner-a", 2*time.Minute); err != nil || !ok {
		t.Fatalf("owner extend: ok=%v err=%v", ok, err)
	}
	if mock.ttl[key] != 2*time.Minute {
		t.Fatalf("expected ttl reset to 2m, got %s", mock.ttl[key])
	}
	if ok, err := client.ReleaseIfOwner(ctx, key, "owner-b"); err != nil || ok {
		t.Fatalf("foreign owner must not release: ok=%v err=%v", ok, err)
	}
	if ok, err := client.ReleaseIfOwner(ctx, key, "owner-a"); err != nil || !ok {
		t.Fatalf("owner release: ok=%v err=%v", ok, err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected key removed, got %v", err)
	}
}

func TestJSONCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	type report struct {
		SKU  string `json:"sku"`
		Days int    `json:"days"`
	}

	var out report
	hit, err := client.GetJSON(ctx, client.CacheKey("forecast", "m-1"), &out)
	if err != nil || hit {
		t.Fatalf("expected cache miss, got hit=%v err=%v", hit, err)
	}

	if err := client.SetJSON(ctx, client.CacheKey("forecast", "m-1"), report{SKU: "WOOD-01", Days: 12}, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	hit, err = client.GetJSON(ctx, client.CacheKey("forecast", "m-1"), &out)
	if err != nil || !hit {
		t.Fatalf("expected cache hit, got hit=%v err=%v", hit, err)
	}
	if out.SKU != "WOOD-01" || out.Days != 12 {
		t.Fatalf("unexpected cached value %+v", out)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "furni:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.LockKey("cron-worker"); got != "furni:lock:cron-worker" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.CacheKey("forecast", "", "m-1"); got != "furni:cache:forecast:m-1" {
		t.Fatalf("cache key should skip empty parts, got %s", got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping on empty client to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op, got %v", err)
	}
}

type mockCmdable struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
	} else {
		m.data[key] = fmt.Sprint(value)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("mock only serves cached scripts"))
}

func (m *mockCmdable) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	key, owner := keys[0], fmt.Sprint(args[0])
	if m.data[key] != owner {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch sha1 {
	case releaseIfOwnerScript.Hash():
		delete(m.data, key)
	case extendIfOwnerScript.Hash():
		ms, _ := args[1].(int64)
		m.ttl[key] = time.Duration(ms) * time.Millisecond
	default:
		return redis.NewCmdResult(nil, errors.New("unknown script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (m *mockCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha1, keys, args...)
}

func (m *mockCmdable) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockCmdable) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
