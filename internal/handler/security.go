package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-kart/pkg/httpmiddleware"
)

// OperatorKeyHeader carries the operator key on catalog mutations.
const OperatorKeyHeader = "X-Operator-Key"

// KeyChecker authenticates operator keys against HMAC-SHA256 hashes so that
// plain keys never appear in configuration.
type KeyChecker struct {
	pepper []byte
	hashes [][]byte
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, the form expected
// by NewKeyChecker.
func HashKey(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewKeyChecker accepts any key whose HashKey is listed in hexHashes.
func NewKeyChecker(pepper string, hexHashes []string) (*KeyChecker, error) {
	c := &KeyChecker{pepper: []byte(pepper)}
	for _, h := range hexHashes {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, errors.Wrapf(err, "operator key hash %q", h)
		}
		if len(b) != sha256.Size {
			return nil, errors.Errorf("operator key hash %q: want %d bytes", h, sha256.Size)
		}
		c.hashes = append(c.hashes, b)
	}
	if len(c.hashes) == 0 {
		return nil, errors.New("no operator key hashes")
	}
	return c, nil
}

// Check reports whether key is accepted. Every stored hash is compared in
// constant time.
func (c *KeyChecker) Check(key string) bool {
	if key == "" {
		return false
	}
	mac := hmac.New(sha256.New, c.pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)

	ok := 0
	for _, h := range c.hashes {
		ok |= subtle.ConstantTimeCompare(sum, h)
	}
	return ok == 1
}

// Middleware rejects requests without an accepted operator key.
func (c *KeyChecker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Check(r.Header.Get(OperatorKeyHeader)) {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
