package store

import (
	"bytes"
	"errors"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	content := bytes.Repeat([]byte("fingermark blob content "), 1000)
	key, size, err := s.Put(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	if len(key) != 64 {
		t.Errorf("key length %d, want 64 hex chars", len(key))
	}

	got, err := s.GetBytes(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("round-tripped content differs")
	}
}

func TestContentAddressing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	k1, err := s.PutBytes([]byte("same bytes"))
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	k2, err := s.PutBytes([]byte("same bytes"))
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if k1 != k2 {
		t.Errorf("identical content produced different keys: %s vs %s", k1, k2)
	}
	k3, err := s.PutBytes([]byte("different bytes"))
	if err != nil {
		t.Fatalf("put 3: %v", err)
	}
	if k3 == k1 {
		t.Error("different content produced the same key")
	}
}

func TestGetMissing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = s.GetBytes("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key, err := s.PutBytes([]byte("to delete"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.GetBytes(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("blob still readable after delete: %v", err)
	}
}
