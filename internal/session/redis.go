package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON string under <prefix>:session:<id>
// and indexes ids per shop in the set <prefix>:shop_sessions:<shop>.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to url and fails fast if the server is unreachable.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, prefix), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "shopdelta"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + ":session:" + id }
func (s *RedisStore) shopKey(shop string) string  { return s.prefix + ":shop_sessions:" + shop }

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	if sess.ID == "" || sess.Shop == "" {
		return fmt.Errorf("session id and shop are required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var ttl time.Duration
	if sess.ExpiresAt != nil {
		ttl = time.Until(*sess.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Second
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		p.SAdd(ctx, s.shopKey(sess.Shop), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.sessionKey(id))
		p.SRem(ctx, s.shopKey(sess.Shop), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByShop(ctx context.Context, shop string) ([]Session, error) {
	ids, err := s.rdb.SMembers(ctx, s.shopKey(shop)).Result()
	if err != nil {
		return nil, fmt.Errorf("list shop sessions: %w", err)
	}
	sort.Strings(ids)

	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired by TTL; the index entry is stale
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// maxTxRetries bounds optimistic-lock retries when the shop index changes
// under a WATCH.
const maxTxRetries = 10

// DeleteTenantSessions removes every session indexed for shop and the index
// itself in one transaction. The index is watched, so a Save that lands
// between reading it and deleting aborts the transaction and it is retried
// with the new member included.
func (s *RedisStore) DeleteTenantSessions(ctx context.Context, shop string) (int64, error) {
	key := s.shopKey(shop)
	var n int64

	txf := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}
		n = 0
		if len(ids) == 0 {
			return nil
		}
		dels := make([]*redis.IntCmd, 0, len(ids))
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				dels = append(dels, p.Del(ctx, s.sessionKey(id)))
			}
			p.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		for _, cmd := range dels {
			n += cmd.Val()
		}
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("delete tenant sessions: %w", err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("delete tenant sessions: index for %s kept changing after %d attempts", shop, maxTxRetries)
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
