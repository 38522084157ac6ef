package share

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	hashPrefix        = "b3$"
	passwordKeyDomain = "shopdelta 2024 share-link password v1"
)

// Hasher turns share passwords into one-way digests. The digest is a keyed
// BLAKE3 hash whose key is derived from a server-side pepper, so the same
// password always hashes the same way under one deployment.
type Hasher struct {
	key [32]byte
}

func NewHasher(pepper string) *Hasher {
	h := &Hasher{}
	blake3.DeriveKey(passwordKeyDomain, []byte(pepper), h.key[:])
	return h
}

// Hash returns "b3$<hex digest>" for password.
func (h *Hasher) Hash(password string) string {
	hasher, err := blake3.NewKeyed(h.key[:])
	if err != nil {
		// key is always 32 bytes
		panic(err)
	}
	_, _ = hasher.Write([]byte(password))
	return hashPrefix + hex.EncodeToString(hasher.Sum(nil))
}

// Verify recomputes the digest of password and compares it to stored in
// constant time.
func (h *Hasher) Verify(password, stored string) bool {
	if !strings.HasPrefix(stored, hashPrefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.Hash(password)), []byte(stored)) == 1
}
