// Package auth authenticates embedded-app requests by their platform session
// token and carries the resulting principal in the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Principal is the authenticated caller: a shop and, for online tokens, a user.
type Principal struct {
	Shop      string
	UserID    string
	SessionID string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", errors.New("missing session token")
	}
	return token, nil
}
