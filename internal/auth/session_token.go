package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

// ErrInvalidSessionToken is returned for any token that fails verification.
var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionClaims are the claims the platform puts in an embedded-app
// session token.
type SessionClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenVerifier checks HS256 session tokens signed with the app
// secret. The audience must be the app's API key.
type SessionTokenVerifier struct {
	apiKey  string
	secrets [][]byte
	leeway  time.Duration
	now     func() time.Time
}

// NewSessionTokenVerifier builds a verifier. Additional secrets are accepted
// while the app secret is rotated; empty ones are ignored.
func NewSessionTokenVerifier(apiKey string, leeway time.Duration, secrets ...string) *SessionTokenVerifier {
	v := &SessionTokenVerifier{apiKey: apiKey, leeway: leeway, now: time.Now}
	for _, s := range secrets {
		if s != "" {
			v.secrets = append(v.secrets, []byte(s))
		}
	}
	return v
}

// Verify validates token and returns the principal it names.
func (v *SessionTokenVerifier) Verify(token string) (Principal, error) {
	if len(v.secrets) == 0 || v.apiKey == "" {
		return Principal{}, fmt.Errorf("%w: verifier not configured", ErrInvalidSessionToken)
	}

	var lastErr error
	for _, secret := range v.secrets {
		claims, err := v.parse(token, secret)
		if err != nil {
			lastErr = err
			continue
		}
		return principalFromClaims(claims)
	}
	return Principal{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, lastErr)
}

func (v *SessionTokenVerifier) parse(token string, secret []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token not valid")
	}
	return claims, nil
}

// principalFromClaims takes the shop from dest and requires iss to point at
// the same shop's admin.
func principalFromClaims(c *SessionClaims) (Principal, error) {
	dest, err := url.Parse(c.Dest)
	if err != nil || dest.Host == "" {
		return Principal{}, fmt.Errorf("%w: bad dest claim", ErrInvalidSessionToken)
	}
	iss, err := url.Parse(c.Issuer)
	if err != nil || iss.Host == "" {
		return Principal{}, fmt.Errorf("%w: bad iss claim", ErrInvalidSessionToken)
	}

	shop := tenant.NormalizeDomain(dest.Host)
	if tenant.NormalizeDomain(iss.Host) != shop {
		return Principal{}, fmt.Errorf("%w: iss and dest disagree", ErrInvalidSessionToken)
	}

	return Principal{
		Shop:      shop,
		UserID:    c.Subject,
		SessionID: c.SID,
	}, nil
}
