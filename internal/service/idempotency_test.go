package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("con1alice", "k1", "POST", "/communities")
	if a != IdempotencyKey("con1alice", "k1", "POST", "/communities") {
		t.Fatalf("key is not stable")
	}
	if a == IdempotencyKey("con1bob", "k1", "POST", "/communities") {
		t.Fatalf("requester must be part of the key")
	}
	if a == IdempotencyKey("con1alice", "k1", "POST", "/communities/1/council") {
		t.Fatalf("path must be part of the key")
	}
	if !strings.HasPrefix(a, "idem:") || strings.ContainsAny(a, " \n") || len(a) > 250 {
		t.Fatalf("key unusable for memcached: %q", a)
	}

	for _, key := range []string{"", "k", "k2", "a-much-longer-client-supplied-key"} {
		got := IdempotencyKey("con1alice", key, "POST", "/communities")
		if len(got) != len("idem:")+32 {
			t.Fatalf("hash is not zero padded to 128 bits: %q", got)
		}
	}
}

func TestBodyHash(t *testing.T) {
	if BodyHash([]byte(`{"id":1}`)) == BodyHash([]byte(`{"id":2}`)) {
		t.Fatalf("different bodies should hash differently")
	}
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	response := StoredResponse{BodyHash: 7, Status: 200, ContentType: "application/json", Body: []byte(`{"id":1}`)}
	if err := store.Set(ctx, "key", response, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(response, got); diff != "" {
		t.Fatalf("unexpected stored response (-want +got):\n%s", diff)
	}
}

func TestMemoryIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	if err := store.Set(ctx, "key", StoredResponse{Status: 200}, 10*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Fatalf("expected entry to expire")
	}
}
