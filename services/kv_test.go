package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestKV(t *testing.T) (*KVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewKVStoreFromClient(client), mr
}

func TestKVStoreGetSet(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	if err := kv.Set(ctx, "k1", payload{Name: "alpha"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if err := kv.Get(ctx, "k1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "alpha" {
		t.Errorf("Name = %q, want alpha", got.Name)
	}

	if err := kv.Get(ctx, "missing", &got); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get missing err = %v, want ErrKeyNotFound", err)
	}
}

func TestKVStoreSetTTL(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	var v string
	if err := kv.Get(ctx, "short", &v); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected key to expire, got err %v", err)
	}
}

func TestKVStoreGetByPrefix(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	for _, k := range []string{"p_1", "p_2", "p_3", "other"} {
		if err := kv.Set(ctx, k, k, 0); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	raw, err := kv.GetByPrefix(ctx, "p_")
	if err != nil {
		t.Fatalf("GetByPrefix: %v", err)
	}
	var got []string
	for _, r := range raw {
		got = append(got, string(r))
	}
	sort.Strings(got)
	want := []string{`"p_1"`, `"p_2"`, `"p_3"`}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestKVStoreIncrStartsWindow(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := kv.Incr(ctx, "counter", time.Hour)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != i {
			t.Errorf("Incr #%d = %d", i, n)
		}
	}
	if ttl := mr.TTL("counter"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	n, err := kv.Counter(ctx, "counter")
	if err != nil || n != 3 {
		t.Errorf("Counter = %d, %v; want 3", n, err)
	}
	if n, _ := kv.Counter(ctx, "nothing"); n != 0 {
		t.Errorf("Counter missing = %d, want 0", n)
	}

	mr.FastForward(time.Hour + time.Second)
	if n, _ := kv.Counter(ctx, "counter"); n != 0 {
		t.Errorf("Counter after window = %d, want 0", n)
	}
}

func TestKVStoreIncrKeepsRunningWindow(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	if _, err := kv.Incr(ctx, "counter", time.Hour); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	mr.FastForward(30 * time.Minute)
	if _, err := kv.Incr(ctx, "counter", time.Hour); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if ttl := mr.TTL("counter"); ttl != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", ttl)
	}
}

func TestKVStoreIncrRepairsMissingExpiry(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	// A counter left without a TTL still gets a window on the next hit.
	if err := mr.Set("counter", "5"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := kv.Incr(ctx, "counter", time.Hour)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 6 {
		t.Errorf("Incr = %d, want 6", n)
	}
	if ttl := mr.TTL("counter"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
}

func TestKVStoreNilSafe(t *testing.T) {
	var kv *KVStore
	ctx := context.Background()

	if kv.Available() {
		t.Error("nil store should not be available")
	}
	if err := kv.Set(ctx, "k", "v", 0); err != nil {
		t.Errorf("Set on nil store: %v", err)
	}
	var v string
	if err := kv.Get(ctx, "k", &v); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get on nil store = %v", err)
	}
	if err := kv.Ping(ctx); err == nil {
		t.Error("Ping on nil store should fail")
	}
}
