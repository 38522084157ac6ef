package share

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 55)
	for _, c := range "0O1Iil" {
		assert.NotContains(t, Alphabet, string(c))
	}
	assert.Equal(t, 220, maxUnbiased)
}

func TestNewCodeShape(t *testing.T) {
	code, err := NewCode()
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	assert.True(t, ValidCode(code))
}

func TestNewCodeUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q after %d draws", code, i)
		seen[code] = struct{}{}
	}
}

func TestGenerateCodeRejectsBiasedBytes(t *testing.T) {
	// 24 bytes per read: the first read is all rejected values, the second
	// maps every byte to index 0..11.
	first := bytes.Repeat([]byte{220, 255}, CodeLength)
	second := make([]byte, CodeLength*2)
	for i := range second {
		second[i] = byte(i)
	}
	r := bytes.NewReader(append(first, second...))

	code, err := GenerateCode(r)
	require.NoError(t, err)
	assert.Equal(t, Alphabet[:CodeLength], code)
}

func TestGenerateCodeWrapsModulo(t *testing.T) {
	buf := bytes.Repeat([]byte{55, 219}, CodeLength)
	code, err := GenerateCode(bytes.NewReader(buf))
	require.NoError(t, err)
	// 55 % 55 == 0 and 219 % 55 == 54
	assert.Equal(t, strings.Repeat(string(Alphabet[0])+string(Alphabet[54]), CodeLength/2), code)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateCodeReaderError(t *testing.T) {
	_, err := GenerateCode(failingReader{})
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("abcdefghjkmn"))
	assert.False(t, ValidCode("abcdefghjkm"), "too short")
	assert.False(t, ValidCode("abcdefghjkm0"), "ambiguous character")
	assert.False(t, ValidCode("abcdefghjkm/"), "path character")
}
