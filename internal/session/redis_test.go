package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreKeys(t *testing.T) {
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer s.Close()

	assert.Equal(t, "shopdelta:session:offline_a", s.sessionKey("offline_a"))
	assert.Equal(t, "shopdelta:shop_sessions:a.myshopify.com", s.shopKey("a.myshopify.com"))
}

// Runs against a real server when SHOPDELTA_TEST_REDIS_URL is set.
func TestRedisStoreDeleteTenantSessions(t *testing.T) {
	url := os.Getenv("SHOPDELTA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHOPDELTA_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("shopdelta-test-%d", time.Now().UnixNano())

	s, err := NewRedisStore(ctx, url, prefix)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, Session{ID: "offline_a", Shop: "a.myshopify.com", AccessToken: "t1"}))
	require.NoError(t, s.Save(ctx, Session{ID: "online_a", Shop: "a.myshopify.com", AccessToken: "t2", IsOnline: true}))
	require.NoError(t, s.Save(ctx, Session{ID: "offline_b", Shop: "b.myshopify.com", AccessToken: "t3"}))

	found, err := s.FindByShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	n, err := s.DeleteTenantSessions(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteTenantSessions(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = s.Load(ctx, "offline_b")
	assert.NoError(t, err)
	_, err = s.DeleteTenantSessions(ctx, "b.myshopify.com")
	require.NoError(t, err)
}

// Runs against a real server when SHOPDELTA_TEST_REDIS_URL is set.
func TestRedisStoreDeleteTenantSessionsLeavesNoOrphans(t *testing.T) {
	url := os.Getenv("SHOPDELTA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHOPDELTA_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("shopdelta-test-%d", time.Now().UnixNano())
	const shop = "a.myshopify.com"

	s, err := NewRedisStore(ctx, url, prefix)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("online_%d_%d", w, i)
				assert.NoError(t, s.Save(ctx, Session{ID: id, Shop: shop, AccessToken: id, IsOnline: true}))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			// Retry exhaustion under contention is reported, not a failure here.
			_, _ = s.DeleteTenantSessions(ctx, shop)
		}
	}()
	wg.Wait()

	_, err = s.DeleteTenantSessions(ctx, shop)
	require.NoError(t, err)

	// A session written while the index was being cleared must not outlive it.
	keys, err := s.rdb.Keys(ctx, prefix+":*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
