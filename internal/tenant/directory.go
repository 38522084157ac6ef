// Package tenant keeps the record of shops that installed the app.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownShop is returned when no record exists for a shop domain.
var ErrUnknownShop = errors.New("unknown shop")

// Shop is a single installed store. The domain is the tenant identifier.
type Shop struct {
	Domain        string
	Scope         string
	InstalledAt   time.Time
	UninstalledAt *time.Time
	UpdatedAt     time.Time
}

// Installed reports whether the shop currently has the app installed.
func (s Shop) Installed() bool { return s.UninstalledAt == nil }

// NormalizeDomain lowercases and trims a shop domain, dropping any scheme or path.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}

// Directory is the SQLite-backed shop registry.
type Directory struct {
	db  *sql.DB
	now func() time.Time
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db, now: time.Now}
}

// Register records an install. Re-registering an uninstalled shop reinstalls it.
func (d *Directory) Register(ctx context.Context, domain, scope string) (Shop, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return Shop{}, fmt.Errorf("shop domain is empty")
	}

	now := d.now().UTC().Format(time.RFC3339Nano)
	_, err := d.db.ExecContext(ctx, `
INSERT INTO shops(domain, installed_at, uninstalled_at, scope, updated_at)
VALUES(?, ?, NULL, ?, ?)
ON CONFLICT(domain) DO UPDATE SET
  installed_at = CASE WHEN shops.uninstalled_at IS NOT NULL THEN excluded.installed_at ELSE shops.installed_at END,
  uninstalled_at = NULL,
  scope = COALESCE(NULLIF(excluded.scope, ''), shops.scope),
  updated_at = excluded.updated_at;
`, domain, now, scope, now)
	if err != nil {
		return Shop{}, fmt.Errorf("register shop: %w", err)
	}
	return d.LookupShop(ctx, domain)
}

// LookupShop returns the shop record or ErrUnknownShop.
func (d *Directory) LookupShop(ctx context.Context, domain string) (Shop, error) {
	var (
		s              Shop
		scope          sql.NullString
		installedAtS   string
		uninstalledAtS sql.NullString
		updatedAtS     string
	)
	err := d.db.QueryRowContext(ctx, `
SELECT domain, scope, installed_at, uninstalled_at, updated_at
FROM shops WHERE domain = ?;
`, NormalizeDomain(domain)).Scan(&s.Domain, &scope, &installedAtS, &uninstalledAtS, &updatedAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrUnknownShop
	}
	if err != nil {
		return Shop{}, fmt.Errorf("lookup shop: %w", err)
	}

	s.Scope = scope.String
	if t, err := time.Parse(time.RFC3339Nano, installedAtS); err == nil {
		s.InstalledAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtS); err == nil {
		s.UpdatedAt = t
	}
	if uninstalledAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, uninstalledAtS.String); err == nil {
			s.UninstalledAt = &t
		}
	}
	return s, nil
}

// MarkUninstalled stamps the uninstall time. The first stamp wins, so repeated
// deliveries leave the record unchanged. Unknown shops are a no-op.
func (d *Directory) MarkUninstalled(ctx context.Context, domain string, at time.Time) error {
	now := d.now().UTC().Format(time.RFC3339Nano)
	_, err := d.db.ExecContext(ctx, `
UPDATE shops
SET uninstalled_at = COALESCE(uninstalled_at, ?), updated_at = ?
WHERE domain = ?;
`, at.UTC().Format(time.RFC3339Nano), now, NormalizeDomain(domain))
	if err != nil {
		return fmt.Errorf("mark shop uninstalled: %w", err)
	}
	return nil
}

// DeleteShop removes the shop record; share links cascade with it.
// Returns the number of shop rows removed (0 when already gone).
func (d *Directory) DeleteShop(ctx context.Context, domain string) (int64, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM shops WHERE domain = ?;", NormalizeDomain(domain))
	if err != nil {
		return 0, fmt.Errorf("delete shop: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete shop rows affected: %w", err)
	}
	return n, nil
}
