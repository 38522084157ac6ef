// Package share issues and resolves shareable report links.
//
// A link is identified publicly by a 12-character code drawn from crypto/rand.
// It may carry a password (stored only as a keyed BLAKE3 digest), may expire,
// and can be revoked. Expiry is evaluated whenever a token is read; nothing
// sweeps expired rows.
package share

import (
	"errors"
	"time"
)

var (
	// ErrNotFound covers both missing tokens and tokens owned by another shop.
	ErrNotFound = errors.New("share token not found")
	// ErrRevoked is returned when mutating a revoked token.
	ErrRevoked = errors.New("share token revoked")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid share input")
	// ErrPasswordMismatch is returned by Unlock for a wrong password.
	ErrPasswordMismatch = errors.New("share password mismatch")
	// ErrInaccessible is returned by public access for revoked, expired or
	// inactive tokens.
	ErrInaccessible = errors.New("share token inaccessible")

	errCodeConflict = errors.New("share code already in use")
)

// Mode selects the report period a link shows.
type Mode string

const (
	ModeYear  Mode = "year"
	ModeMonth Mode = "month"
)

// Token is a stored share link.
type Token struct {
	ID           string
	Shop         string
	Code         string
	Title        string
	Mode         Mode
	YearA        *int
	YearB        *int
	Month        *int
	PasswordHash *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
	Revoked      bool
	Active       bool
	ViewCount    int64
	LastViewedAt *time.Time
}

// AccessState is how a public visitor sees a token.
type AccessState string

const (
	StateActive           AccessState = "active"
	StatePasswordRequired AccessState = "password_required"
	StateRevoked          AccessState = "revoked"
	StateExpired          AccessState = "expired"
	StateInactive         AccessState = "inactive"
)

// Expired reports whether the token's expiry has passed at now.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// HasPassword reports whether a password protects the token.
func (t Token) HasPassword() bool {
	return t.PasswordHash != nil && *t.PasswordHash != ""
}

// State derives the access state at now for a visitor who has not yet
// presented a password. Revoked and Expired are terminal.
func (t Token) State(now time.Time) AccessState {
	switch {
	case t.Revoked:
		return StateRevoked
	case t.Expired(now):
		return StateExpired
	case !t.Active:
		return StateInactive
	case t.HasPassword():
		return StatePasswordRequired
	default:
		return StateActive
	}
}

// Accessible reports whether the token can be viewed at all at now,
// password aside.
func (t Token) Accessible(now time.Time) bool {
	s := t.State(now)
	return s == StateActive || s == StatePasswordRequired
}

// View is the public representation of a token. It never carries the
// password hash.
type View struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	URL          string      `json:"url,omitempty"`
	Title        string      `json:"title,omitempty"`
	Mode         Mode        `json:"mode"`
	YearA        *int        `json:"yearA,omitempty"`
	YearB        *int        `json:"yearB,omitempty"`
	Month        *int        `json:"month,omitempty"`
	HasPassword  bool        `json:"hasPassword"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	ExpiresAt    *time.Time  `json:"expiresAt,omitempty"`
	Revoked      bool        `json:"revoked"`
	Active       bool        `json:"isActive"`
	State        AccessState `json:"state"`
	ViewCount    int64       `json:"viewCount"`
	LastViewedAt *time.Time  `json:"lastViewedAt,omitempty"`
}

// View builds the public representation. baseURL, when set, is joined with
// the code to form URL.
func (t Token) View(now time.Time, baseURL string) View {
	v := View{
		ID:           t.ID,
		Code:         t.Code,
		Title:        t.Title,
		Mode:         t.Mode,
		YearA:        t.YearA,
		YearB:        t.YearB,
		Month:        t.Month,
		HasPassword:  t.HasPassword(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ExpiresAt:    t.ExpiresAt,
		Revoked:      t.Revoked,
		Active:       t.Active,
		State:        t.State(now),
		ViewCount:    t.ViewCount,
		LastViewedAt: t.LastViewedAt,
	}
	if baseURL != "" {
		v.URL = trimSlash(baseURL) + "/s/" + t.Code
	}
	return v
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
