// Package session stores Shopify access-token sessions per shop.
//
// Three backends share the Store interface: SQLite (default, same file as
// the rest of the app state), Redis and Postgres. The webhook dispatcher only
// ever calls DeleteTenantSessions.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no session matches the id.
var ErrNotFound = errors.New("session not found")

// Session is one offline or online Shopify session.
type Session struct {
	ID          string     `json:"id"`
	Shop        string     `json:"shop"`
	State       string     `json:"state,omitempty"`
	IsOnline    bool       `json:"is_online"`
	Scope       string     `json:"scope,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AccessToken string     `json:"access_token"`
	UserID      string     `json:"user_id,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OfflineID is the conventional id of a shop's offline session.
func OfflineID(shop string) string { return "offline_" + shop }

// Store persists sessions.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	FindByShop(ctx context.Context, shop string) ([]Session, error)
	// DeleteTenantSessions removes every session for shop and reports how
	// many were removed. Zero with a nil error means nothing was stored.
	DeleteTenantSessions(ctx context.Context, shop string) (int64, error)
	Close() error
}
