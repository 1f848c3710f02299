// Package store is a content-addressed blob store for job inputs and
// outputs. Blobs are zstd-compressed at rest and addressed by the SHA-256 of
// their uncompressed content, which deduplicates repeat uploads for free.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

var ErrNotFound = errors.New("store: blob not found")

type Store struct {
	root string
}

func New(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, "blobs")
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Put streams r into the store and returns the blob key and the
// uncompressed size.
func (s *Store) Put(r io.Reader) (key string, size int64, err error) {
	tmp, err := os.CreateTemp(s.root, "put-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return "", 0, err
	}

	h := sha256.New()
	size, err = io.Copy(io.MultiWriter(enc, h), r)
	if err != nil {
		enc.Close()
		tmp.Close()
		return "", 0, err
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	key = hex.EncodeToString(h.Sum(nil))
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", 0, err
	}
	if _, err := os.Stat(dst); err == nil {
		// Already stored; content addressing makes the copy redundant.
		return key, size, nil
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, err
	}
	return key, size, nil
}

// PutBytes stores an in-memory blob.
func (s *Store) PutBytes(b []byte) (string, error) {
	key, _, err := s.Put(bytes.NewReader(b))
	return key, err
}

// Get opens a blob for reading. The caller must Close the result.
func (s *Store) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &blobReader{dec: dec, f: f}, nil
}

// GetBytes reads a whole blob into memory.
func (s *Store) GetBytes(key string) ([]byte, error) {
	rc, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// TotalBytes walks the store and sums compressed sizes on disk.
func (s *Store) TotalBytes() (uint64, error) {
	var total uint64
	err := filepath.WalkDir(s.root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}

func (s *Store) path(key string) string {
	if len(key) < 2 {
		return filepath.Join(s.root, "xx", key+".zst")
	}
	return filepath.Join(s.root, key[:2], key+".zst")
}

type blobReader struct {
	dec *zstd.Decoder
	f   *os.File
}

func (b *blobReader) Read(p []byte) (int, error) { return b.dec.Read(p) }

func (b *blobReader) Close() error {
	b.dec.Close()
	return b.f.Close()
}
