package share

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Alphabet is the display-safe character set for share codes. It leaves out
// 0 O o 1 I i l.
const Alphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a share code.
const CodeLength = 12

// maxUnbiased is the largest multiple of len(Alphabet) that fits in a byte.
// Bytes at or above it are rejected so every character is equally likely.
const maxUnbiased = 256 - 256%len(Alphabet)

// NewCode returns a fresh share code drawn from crypto/rand.
func NewCode() (string, error) {
	return GenerateCode(rand.Reader)
}

// GenerateCode builds a code from r using rejection sampling.
func GenerateCode(r io.Reader) (string, error) {
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(out) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidCode reports whether s has the shape of a share code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !inAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func inAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}
