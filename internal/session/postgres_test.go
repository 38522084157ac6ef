package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database when SHOPDELTA_TEST_POSTGRES_URL is set.
func TestPostgresStoreDeleteTenantSessions(t *testing.T) {
	url := os.Getenv("SHOPDELTA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SHOPDELTA_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	shop := fmt.Sprintf("pg-%d.myshopify.com", time.Now().UnixNano())

	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, Session{ID: OfflineID(shop), Shop: shop, AccessToken: "t1"}))
	got, err := s.Load(ctx, OfflineID(shop))
	require.NoError(t, err)
	assert.Equal(t, "t1", got.AccessToken)

	n, err := s.DeleteTenantSessions(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Load(ctx, OfflineID(shop))
	assert.ErrorIs(t, err, ErrNotFound)
}
