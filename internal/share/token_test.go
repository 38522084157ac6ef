package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    *time.Time
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "never", want: nil},
		{in: "1d", want: ptrTime(now.Add(24 * time.Hour))},
		{in: "7d", want: ptrTime(now.Add(7 * 24 * time.Hour))},
		{in: "30d", want: ptrTime(now.Add(30 * 24 * time.Hour))},
		{in: "2w", wantErr: true},
		{in: "7", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ExpiresAt(tt.in, now)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidInput, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTokenState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	hash := "b3$00"

	tests := []struct {
		name  string
		token Token
		want  AccessState
	}{
		{"active", Token{Active: true}, StateActive},
		{"active until expiry", Token{Active: true, ExpiresAt: &future}, StateActive},
		{"password required", Token{Active: true, PasswordHash: &hash}, StatePasswordRequired},
		{"expired though not revoked and active", Token{Active: true, ExpiresAt: &past}, StateExpired},
		{"expiry boundary is expired", Token{Active: true, ExpiresAt: &now}, StateExpired},
		{"revoked wins over expiry", Token{Active: true, Revoked: true, ExpiresAt: &past}, StateRevoked},
		{"revoked wins over password", Token{Active: true, Revoked: true, PasswordHash: &hash}, StateRevoked},
		{"inactive", Token{Active: false}, StateInactive},
		{"expired wins over inactive", Token{Active: false, ExpiresAt: &past}, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.State(now))
		})
	}
}

func TestTokenAccessible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)

	expired := Token{Active: true, Revoked: false, ExpiresAt: &past}
	assert.False(t, expired.Accessible(now))
	assert.True(t, Token{Active: true}.Accessible(now))
}

func TestTokenViewHasNoPasswordMaterial(t *testing.T) {
	hash := NewHasher("pepper").Hash("abc123")
	tok := Token{ID: "id-1", Code: "abcdefghjkmn", Mode: ModeYear, Active: true, PasswordHash: &hash}

	v := tok.View(time.Now(), "https://app.example.com/")
	assert.True(t, v.HasPassword)
	assert.Equal(t, StatePasswordRequired, v.State)
	assert.Equal(t, "https://app.example.com/s/abcdefghjkmn", v.URL)
}

func ptrTime(t time.Time) *time.Time { return &t }
