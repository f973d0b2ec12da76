package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "catalogs/en.json", "application/json", bytes.NewReader([]byte("content")))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://catalogs/en.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	got, ok := store.Object("catalogs/en.json")
	if !ok || string(got) != "content" {
		t.Fatalf("unexpected object %q (found=%v)", got, ok)
	}
	if store.ObjectCount() != 1 || store.Len() != 0 {
		t.Fatalf("objects and cache entries must be counted apart: objects=%d entries=%d", store.ObjectCount(), store.Len())
	}
}

func TestBlobStoreKVCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	payload := []byte("content")
	if err := store.Put(ctx, "k", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	payload[0] = 'C'
	got, found, err := store.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if string(got) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", got)
	}
	if _, found, _ := store.Get(ctx, "missing"); found {
		t.Fatal("expected missing key")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.Len())
	}
	if store.ObjectCount() != 0 {
		t.Fatalf("expected no objects, got %d", store.ObjectCount())
	}
}
