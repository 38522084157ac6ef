package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps sessions in the shared state database. The sessions table
// is created by storage.BootstrapSQLite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" || sess.Shop == "" {
		return fmt.Errorf("session id and shop are required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	var expires any
	if sess.ExpiresAt != nil {
		expires = sess.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, shop, state, is_online, scope, expires_at, access_token, user_id, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  shop = excluded.shop,
  state = excluded.state,
  is_online = excluded.is_online,
  scope = excluded.scope,
  expires_at = excluded.expires_at,
  access_token = excluded.access_token,
  user_id = excluded.user_id,
  updated_at = excluded.updated_at;
`, sess.ID, sess.Shop, sess.State, boolToInt(sess.IsOnline), sess.Scope, expires, sess.AccessToken, sess.UserID,
		sess.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, shop, state, is_online, scope, expires_at, access_token, user_id, updated_at
FROM sessions WHERE id = ?;
`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?;", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindByShop(ctx context.Context, shop string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, shop, state, is_online, scope, expires_at, access_token, user_id, updated_at
FROM sessions WHERE shop = ? ORDER BY id;
`, shop)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteTenantSessions(ctx context.Context, shop string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE shop = ?;", shop)
	if err != nil {
		return 0, fmt.Errorf("delete tenant sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tenant sessions rows affected: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared *sql.DB is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var (
		sess       Session
		state      sql.NullString
		isOnline   int
		scope      sql.NullString
		expiresAt  sql.NullString
		userID     sql.NullString
		updatedAtS string
	)
	if err := r.Scan(&sess.ID, &sess.Shop, &state, &isOnline, &scope, &expiresAt, &sess.AccessToken, &userID, &updatedAtS); err != nil {
		return Session{}, err
	}
	sess.State = state.String
	sess.IsOnline = isOnline != 0
	sess.Scope = scope.String
	sess.UserID = userID.String
	if expiresAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, expiresAt.String); err == nil {
			sess.ExpiresAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtS); err == nil {
		sess.UpdatedAt = t
	}
	return sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
