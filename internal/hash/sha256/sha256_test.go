package sha256

import "testing"

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if s := h.HashString("hello world"); s != want {
		t.Fatalf("HashString mismatch: %s", s)
	}
}

func TestHasherKeySeparatesParts(t *testing.T) {
	t.Parallel()

	h := New()
	if h.Key("ab", "c") == h.Key("a", "bc") {
		t.Fatal("expected distinct keys for different part boundaries")
	}
	if h.Key("watermark", "in.mp4", "{}") != h.Key("watermark", "in.mp4", "{}") {
		t.Fatal("expected stable key")
	}
}
