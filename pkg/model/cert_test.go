package model

import "testing"

func TestHashCertBytesFormat(t *testing.T) {
	h := hashCertBytes([]byte("example certificate bytes"))
	if h[:5] != "sha3:" {
		t.Fatalf("expected sha3: prefix, got %q", h)
	}
	if len(h) != len("sha3:")+64 {
		t.Fatalf("expected 64 hex chars after prefix, got %q", h)
	}
}

func TestHashCertBytesDeterministic(t *testing.T) {
	a := hashCertBytes([]byte("same bytes"))
	b := hashCertBytes([]byte("same bytes"))
	if a != b {
		t.Fatalf("expected identical hash for identical input, got %q vs %q", a, b)
	}
}
