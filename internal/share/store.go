package share

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store persists share tokens. Every owner-facing method is scoped by shop.
type Store interface {
	Insert(ctx context.Context, t Token) error
	Get(ctx context.Context, shop, id string) (Token, error)
	GetByCode(ctx context.Context, code string) (Token, error)
	List(ctx context.Context, shop string) ([]Token, error)
	Update(ctx context.Context, t Token) error
	Revoke(ctx context.Context, shop, id string, at time.Time) error
	Delete(ctx context.Context, shop, id string) error
	DeleteShop(ctx context.Context, shop string) (int64, error)
	RecordView(ctx context.Context, id string, at time.Time) error
}

// SQLiteStore keeps tokens in the share_tokens table created by
// storage.BootstrapSQLite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const tokenColumns = `id, shop, code, title, mode, year_a, year_b, month, password_hash,
  created_at, updated_at, expires_at, revoked, active, view_count, last_viewed_at`

func (s *SQLiteStore) Insert(ctx context.Context, t Token) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO share_tokens(`+tokenColumns+`)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, t.ID, t.Shop, t.Code, t.Title, string(t.Mode),
		nullInt(t.YearA), nullInt(t.YearB), nullInt(t.Month), nullString(t.PasswordHash),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullTime(t.ExpiresAt),
		boolToInt(t.Revoked), boolToInt(t.Active), t.ViewCount, nullTime(t.LastViewedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: share_tokens.code") {
			return errCodeConflict
		}
		return fmt.Errorf("insert share token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, shop, id string) (Token, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM share_tokens WHERE id = ? AND shop = ?;", id, shop)
	return scanOne(row)
}

func (s *SQLiteStore) GetByCode(ctx context.Context, code string) (Token, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM share_tokens WHERE code = ?;", code)
	return scanOne(row)
}

func (s *SQLiteStore) List(ctx context.Context, shop string) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+tokenColumns+" FROM share_tokens WHERE shop = ? ORDER BY created_at DESC, id;", shop)
	if err != nil {
		return nil, fmt.Errorf("list share tokens: %w", err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share tokens: %w", err)
	}
	return out, nil
}

// Update writes the mutable fields. revoked can only ever go from 0 to 1.
func (s *SQLiteStore) Update(ctx context.Context, t Token) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE share_tokens SET
  title = ?,
  password_hash = ?,
  expires_at = ?,
  active = ?,
  revoked = MAX(revoked, ?),
  updated_at = ?
WHERE id = ? AND shop = ?;
`, t.Title, nullString(t.PasswordHash), nullTime(t.ExpiresAt), boolToInt(t.Active), boolToInt(t.Revoked),
		formatTime(t.UpdatedAt), t.ID, t.Shop)
	if err != nil {
		return fmt.Errorf("update share token: %w", err)
	}
	return requireOneRow(res)
}

// Revoke sets only the revoked flag, so it cannot overwrite a concurrent edit.
func (s *SQLiteStore) Revoke(ctx context.Context, shop, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE share_tokens SET revoked = 1, updated_at = ? WHERE id = ? AND shop = ?;",
		formatTime(at), id, shop)
	if err != nil {
		return fmt.Errorf("revoke share token: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, shop, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM share_tokens WHERE id = ? AND shop = ?;", id, shop)
	if err != nil {
		return fmt.Errorf("delete share token: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) DeleteShop(ctx context.Context, shop string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM share_tokens WHERE shop = ?;", shop)
	if err != nil {
		return 0, fmt.Errorf("delete shop share tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete shop share tokens rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) RecordView(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE share_tokens SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?;
`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("record share view: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(r rowScanner) (Token, error) {
	t, err := scanToken(r)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("get share token: %w", err)
	}
	return t, nil
}

func scanToken(r rowScanner) (Token, error) {
	var (
		t                     Token
		title, hash           sql.NullString
		mode                  string
		yearA, yearB, month   sql.NullInt64
		createdAt, updatedAt  string
		expiresAt, lastViewed sql.NullString
		revoked, active       int
	)
	err := r.Scan(&t.ID, &t.Shop, &t.Code, &title, &mode, &yearA, &yearB, &month, &hash,
		&createdAt, &updatedAt, &expiresAt, &revoked, &active, &t.ViewCount, &lastViewed)
	if err != nil {
		return Token{}, err
	}

	t.Title = title.String
	t.Mode = Mode(mode)
	t.YearA = intPtr(yearA)
	t.YearB = intPtr(yearB)
	t.Month = intPtr(month)
	if hash.Valid {
		h := hash.String
		t.PasswordHash = &h
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.ExpiresAt = parseNullTime(expiresAt)
	t.LastViewedAt = parseNullTime(lastViewed)
	t.Revoked = revoked != 0
	t.Active = active != 0
	return t, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
