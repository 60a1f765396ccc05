// Package file implements kv.Store as one gzip-compressed file per key.
package file

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"

	"github.com/xenking/storefront-kart/internal/kv"
)

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Pinger = (*Store)(nil)
)

const ext = ".json.gz"

// Store writes every value to <dir>/<escaped key>.json.gz. Writes go to a
// temporary file first and are renamed into place.
type Store struct {
	dir string
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, classify(err, "file mkdir "+dir)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file holding key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+ext)
}

// Get returns the decompressed value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, kv.Unavailable(err, "file get "+key)
	}
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, classify(err, "file get "+key)
	}
	defer func() { _ = f.Close() }()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, false, kv.Unavailable(err, "file get "+key)
	}
	defer func() { _ = zr.Close() }()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, false, kv.Unavailable(err, "file get "+key)
	}
	return data, true, nil
}

// Put atomically replaces the file holding key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	op := "file put " + key
	if err := ctx.Err(); err != nil {
		return kv.Unavailable(err, op)
	}

	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return kv.Unavailable(err, op)
	}
	if err := zw.Close(); err != nil {
		return kv.Unavailable(err, op)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return classify(err, op)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return classify(err, op)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return classify(err, op)
	}
	if err := tmp.Close(); err != nil {
		return classify(err, op)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return classify(err, op)
	}
	return nil
}

// Ping checks that the directory still exists.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return classify(err, "file ping")
	}
	if !info.IsDir() {
		return kv.Unavailable(errors.Errorf("%s is not a directory", s.dir), "file ping")
	}
	return nil
}

func classify(err error, op string) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return kv.Full(err, op)
	}
	return kv.Unavailable(err, op)
}
