package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Verify checks providedSignature against base64(HMAC-SHA256(secret, rawBody)).
//
// rawBody must be the exact bytes received; the digest is never computed
// over re-serialised JSON. The comparison is constant time (hmac.Equal).
// Verify never panics and never returns an error: a mismatch is reported
// through VerificationResult.
func Verify(rawBody []byte, providedSignature string, secret []byte) VerificationResult {
	return NewVerifier(string(secret)).Verify(rawBody, providedSignature)
}

// Sign returns the signature header value the platform would send for rawBody.
func Sign(rawBody, secret []byte) string {
	return base64.StdEncoding.EncodeToString(computeMAC(rawBody, secret))
}

// Verifier checks signatures against one or more secrets. More than one
// secret is configured while an app secret is being rotated.
type Verifier struct {
	secrets [][]byte
}

// NewVerifier builds a Verifier. Empty secrets are ignored.
func NewVerifier(secrets ...string) Verifier {
	v := Verifier{}
	for _, s := range secrets {
		if s != "" {
			v.secrets = append(v.secrets, []byte(s))
		}
	}
	return v
}

// Verify reports whether providedSignature matches rawBody under any secret.
// Every secret is tried so the work done does not depend on which one matched.
func (v Verifier) Verify(rawBody []byte, providedSignature string) VerificationResult {
	sig := strings.TrimSpace(providedSignature)
	if sig == "" {
		return VerificationResult{Valid: false, Reason: ReasonMissingSignature}
	}

	// Strict rejects non-zero padding bits, so each digest has exactly one
	// accepted encoding.
	provided, err := base64.StdEncoding.Strict().DecodeString(sig)
	if err != nil || len(provided) != sha256.Size {
		return VerificationResult{Valid: false, Reason: ReasonBadSignature}
	}

	matched := false
	for _, secret := range v.secrets {
		if macEqual(computeMAC(rawBody, secret), provided) {
			matched = true
		}
	}
	if !matched {
		return VerificationResult{Valid: false, Reason: ReasonBadSignature}
	}
	return VerificationResult{Valid: true}
}

// macEqual must stay constant time.
var macEqual = hmac.Equal

func computeMAC(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
