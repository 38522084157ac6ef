package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CamDog38/ShopDelta2-sub001/internal/auth"
	"github.com/CamDog38/ShopDelta2-sub001/internal/log"
	"github.com/CamDog38/ShopDelta2-sub001/internal/share"
	"github.com/CamDog38/ShopDelta2-sub001/internal/storage"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret"
	shopA         = "a.myshopify.com"
	shopB         = "b.myshopify.com"
)

type testServer struct {
	handler http.Handler
	shops   *tenant.Directory
}

func newTestServer(t *testing.T, cfg Config) testServer {
	t.Helper()
	return newTestServerWithLogger(t, cfg, log.Discard())
}

func newTestServerWithLogger(t *testing.T, cfg Config, logger *slog.Logger) testServer {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	shops := tenant.NewDirectory(db)
	issuer := share.NewIssuer(share.NewSQLiteStore(db), share.NewHasher("pepper"), log.Discard())
	verifier := auth.NewSessionTokenVerifier(testAPIKey, 5*time.Second, testAPISecret)

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "https://reports.example.com"
	}
	srv := New(cfg, verifier, shops, issuer, logger)
	return testServer{handler: srv.Handler(), shops: shops}
}

func sessionToken(t *testing.T, shop string) string {
	t.Helper()
	now := time.Now()
	claims := &auth.SessionClaims{
		Dest: "https://" + shop,
		SID:  "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   "1",
			Audience:  jwt.ClaimStrings{testAPIKey},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAPISecret))
	require.NoError(t, err)
	return s
}

func (ts testServer) do(t *testing.T, method, path, shop string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if shop != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, shop))
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) share.View {
	t.Helper()
	var v share.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func (ts testServer) create(t *testing.T, shop string, body map[string]any) share.View {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/shares", shop, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeView(t, rr)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{MetricsEnabled: true})
	rr := ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	ts = newTestServer(t, Config{})
	rr = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShareAPIRequiresSessionToken(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodGet, "/api/shares", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/shares", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateShareRegistersShop(t *testing.T) {
	ts := newTestServer(t, Config{})

	v := ts.create(t, shopA, map[string]any{
		"title":     "Year over year",
		"mode":      "year",
		"yearA":     2025,
		"yearB":     2024,
		"password":  "abc123",
		"expiresIn": "7d",
	})
	assert.Len(t, v.Code, share.CodeLength)
	assert.True(t, v.HasPassword)
	assert.True(t, v.Active)
	require.NotNil(t, v.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *v.ExpiresAt, time.Minute)
	assert.Equal(t, "https://reports.example.com/s/"+v.Code, v.URL)

	shop, err := ts.shops.LookupShop(context.Background(), shopA)
	require.NoError(t, err)
	assert.True(t, shop.Installed())

	rr := ts.do(t, http.MethodGet, "/api/shares", shopA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ShareListResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Shares, 1)
	assert.Equal(t, v.ID, list.Shares[0].ID)
	assert.NotContains(t, rr.Body.String(), "b3$", "password hash never leaves the server")
}

func TestAuthenticatedRequestsDoNotRewriteShop(t *testing.T) {
	var logs bytes.Buffer
	ts := newTestServerWithLogger(t, Config{}, slog.New(slog.NewJSONHandler(&logs, nil)))
	ctx := context.Background()

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/shares", shopA, nil).Code)
	first, err := ts.shops.LookupShop(ctx, shopA)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"msg":"shop registered"`)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/shares", shopA, nil).Code)
	second, err := ts.shops.LookupShop(ctx, shopA)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "installed shop is not rewritten per request")

	require.NoError(t, ts.shops.MarkUninstalled(ctx, shopA, time.Now()))
	logs.Reset()
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/shares", shopA, nil).Code)
	again, err := ts.shops.LookupShop(ctx, shopA)
	require.NoError(t, err)
	assert.True(t, again.Installed())
	assert.Contains(t, logs.String(), `"msg":"shop reinstalled"`)
}

func TestCreateShareValidation(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing mode", map[string]any{"yearA": 2025}},
		{"unknown mode", map[string]any{"mode": "week", "yearA": 2025}},
		{"month out of range", map[string]any{"mode": "month", "yearA": 2025, "month": 13}},
		{"bad expiry", map[string]any{"mode": "year", "yearA": 2025, "expiresIn": "2w"}},
		{"year mode without year", map[string]any{"mode": "year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/shares", shopA, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/shares", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, shopA))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	ts := newTestServer(t, Config{})
	v := ts.create(t, shopA, map[string]any{"mode": "year", "yearA": 2025})

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/shares/" + v.ID, nil},
		{http.MethodPost, "/api/shares/" + v.ID + "/revoke", nil},
		{http.MethodPatch, "/api/shares/" + v.ID, map[string]any{"title": "hijack"}},
		{http.MethodDelete, "/api/shares/" + v.ID, nil},
	} {
		rr := ts.do(t, tc.method, tc.path, shopB, tc.body)
		assert.Equal(t, http.StatusNotFound, rr.Code, "%s %s", tc.method, tc.path)
	}

	rr := ts.do(t, http.MethodGet, "/api/shares/"+v.ID, shopA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeView(t, rr)
	assert.False(t, got.Revoked)
	assert.Empty(t, got.Title)
}

func TestRevokeIsFinal(t *testing.T) {
	ts := newTestServer(t, Config{})
	v := ts.create(t, shopA, map[string]any{"mode": "year", "yearA": 2025})

	rr := ts.do(t, http.MethodPost, "/api/shares/"+v.ID+"/revoke", shopA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeView(t, rr).Revoked)

	rr = ts.do(t, http.MethodPost, "/api/shares/"+v.ID+"/revoke", shopA, nil)
	assert.Equal(t, http.StatusOK, rr.Code, "revoking twice is not an error")

	rr = ts.do(t, http.MethodPatch, "/api/shares/"+v.ID, shopA, map[string]any{"isActive": true})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodGet, "/s/"+v.Code, "", nil)
	assert.Equal(t, http.StatusGone, rr.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, share.StateRevoked, errResp.State)
}

func TestUpdateAndDeleteShare(t *testing.T) {
	ts := newTestServer(t, Config{})
	v := ts.create(t, shopA, map[string]any{"mode": "month", "yearA": 2025, "month": 3})

	rr := ts.do(t, http.MethodPatch, "/api/shares/"+v.ID, shopA, map[string]any{
		"title":    "March",
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeView(t, rr)
	assert.Equal(t, "March", got.Title)
	assert.False(t, got.Active)
	assert.Equal(t, share.StateInactive, got.State)

	rr = ts.do(t, http.MethodGet, "/s/"+v.Code, "", nil)
	assert.Equal(t, http.StatusGone, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/shares/"+v.ID, shopA, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/shares/"+v.ID, shopA, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(t, http.MethodGet, "/s/"+v.Code, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPublicShareAccess(t *testing.T) {
	ts := newTestServer(t, Config{})
	open := ts.create(t, shopA, map[string]any{"title": "Open", "mode": "year", "yearA": 2025})
	locked := ts.create(t, shopA, map[string]any{"title": "Locked", "mode": "year", "yearA": 2025, "password": "abc123"})

	rr := ts.do(t, http.MethodGet, "/s/"+open.Code, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp PublicShareResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, share.StateActive, resp.State)
	require.NotNil(t, resp.Share)
	assert.Equal(t, int64(1), resp.Share.ViewCount)

	rr = ts.do(t, http.MethodGet, "/s/"+locked.Code, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = PublicShareResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, share.StatePasswordRequired, resp.State)
	assert.Equal(t, "Locked", resp.Title)
	assert.Nil(t, resp.Share)

	rr = ts.do(t, http.MethodPost, "/s/"+locked.Code+"/unlock", "", UnlockShareRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodPost, "/s/"+locked.Code+"/unlock", "", UnlockShareRequest{Password: "abc123"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp = PublicShareResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.Share)
	assert.Equal(t, locked.ID, resp.Share.ID)

	rr = ts.do(t, http.MethodGet, "/s/unknowncode0", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(t, http.MethodGet, "/s/bad", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnlockIsRateLimited(t *testing.T) {
	ts := newTestServer(t, Config{UnlockPerMinute: 1, UnlockBurst: 2})
	locked := ts.create(t, shopA, map[string]any{"mode": "year", "yearA": 2025, "password": "abc123"})

	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodPost, "/s/"+locked.Code+"/unlock", "", UnlockShareRequest{Password: "guess"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := ts.do(t, http.MethodPost, "/s/"+locked.Code+"/unlock", "", UnlockShareRequest{Password: "abc123"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestUnlockLimitIgnoresForwardedAddress(t *testing.T) {
	ts := newTestServer(t, Config{UnlockPerMinute: 1, UnlockBurst: 3})
	locked := ts.create(t, shopA, map[string]any{"mode": "year", "yearA": 2025, "password": "abc123"})

	attempt := func(i int) int {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(UnlockShareRequest{Password: "guess"}))
		req := httptest.NewRequest(http.MethodPost, "/s/"+locked.Code+"/unlock", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 1; i <= 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, attempt(i))
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt(4))

	other := ts.create(t, shopA, map[string]any{"mode": "year", "yearA": 2024, "password": "abc123"})
	rr := ts.do(t, http.MethodPost, "/s/"+other.Code+"/unlock", "", UnlockShareRequest{Password: "abc123"})
	assert.Equal(t, http.StatusOK, rr.Code, "budget is per code")
}
