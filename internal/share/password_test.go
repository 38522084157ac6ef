package share

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherDeterministic(t *testing.T) {
	h := NewHasher("pepper")
	a := h.Hash("abc123")
	b := NewHasher("pepper").Hash("abc123")

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "b3$"))
	assert.Len(t, a, len("b3$")+64)
	assert.NotContains(t, a, "abc123")
}

func TestHasherPepperChangesDigest(t *testing.T) {
	assert.NotEqual(t, NewHasher("one").Hash("abc123"), NewHasher("two").Hash("abc123"))
}

func TestHasherVerify(t *testing.T) {
	h := NewHasher("pepper")
	stored := h.Hash("abc123")

	assert.True(t, h.Verify("abc123", stored))
	assert.False(t, h.Verify("abc124", stored))
	assert.False(t, h.Verify("", stored))
	assert.False(t, h.Verify("abc123", "abc123"), "plaintext is never accepted as a digest")
	assert.False(t, NewHasher("other").Verify("abc123", stored))
}
