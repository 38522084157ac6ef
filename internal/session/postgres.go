package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed postgres_schema.sql
var postgresSchema string

// PostgresStore keeps sessions in the shopify_sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a pool, fails fast if the database is unreachable
// and applies the schema.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(cctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(cctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply session schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" || sess.Shop == "" {
		return fmt.Errorf("session id and shop are required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO shopify_sessions(id, shop, state, is_online, scope, expires_at, access_token, user_id, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT(id) DO UPDATE SET
  shop = EXCLUDED.shop,
  state = EXCLUDED.state,
  is_online = EXCLUDED.is_online,
  scope = EXCLUDED.scope,
  expires_at = EXCLUDED.expires_at,
  access_token = EXCLUDED.access_token,
  user_id = EXCLUDED.user_id,
  updated_at = EXCLUDED.updated_at
`, sess.ID, sess.Shop, sess.State, sess.IsOnline, sess.Scope, sess.ExpiresAt, sess.AccessToken, sess.UserID, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, shop, COALESCE(state, ''), is_online, COALESCE(scope, ''), expires_at, access_token, COALESCE(user_id, ''), updated_at
FROM shopify_sessions WHERE id = $1
`, id)
	sess, err := scanPgSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM shopify_sessions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByShop(ctx context.Context, shop string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, shop, COALESCE(state, ''), is_online, COALESCE(scope, ''), expires_at, access_token, COALESCE(user_id, ''), updated_at
FROM shopify_sessions WHERE shop = $1 ORDER BY id
`, shop)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanPgSession(rows)
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

func (s *PostgresStore) DeleteTenantSessions(ctx context.Context, shop string) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM shopify_sessions WHERE shop = $1", shop)
	if err != nil {
		return 0, fmt.Errorf("delete tenant sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgSession(r pgx.Row) (Session, error) {
	var sess Session
	err := r.Scan(&sess.ID, &sess.Shop, &sess.State, &sess.IsOnline, &sess.Scope, &sess.ExpiresAt, &sess.AccessToken, &sess.UserID, &sess.UpdatedAt)
	return sess, err
}
