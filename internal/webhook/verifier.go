package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidTimestamp = errors.New("invalid timestamp header")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed window")
	ErrInvalidSignature = errors.New("invalid signature")
)

// DefaultMaxAge bounds how old a signed timestamp may be before the request
// is treated as a replay.
const DefaultMaxAge = 600 * time.Second

// Verifier authenticates inbound webhook requests. The secret is
// deployment-level, shared across tenants. Verification runs over the exact
// body bytes received, before any JSON parsing.
type Verifier struct {
	Secret string
	MaxAge time.Duration
	Now    func() time.Time
}

func NewVerifier(secret string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{Secret: secret, MaxAge: maxAge, Now: time.Now}
}

// Verify checks the hex HMAC-SHA256 signature computed over
// "<timestamp>.<body>" and rejects stale timestamps. Failures are returned,
// never panicked, so the caller can produce a 401 directly.
func (v *Verifier) Verify(signatureHeader, timestampHeader string, body []byte) error {
	sigHeader := strings.TrimSpace(signatureHeader)
	tsHeader := strings.TrimSpace(timestampHeader)
	if sigHeader == "" {
		return ErrMissingSignature
	}

	tsInt, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil || tsInt <= 0 {
		return ErrInvalidTimestamp
	}
	ts := time.Unix(tsInt, 0).UTC()

	now := v.Now().UTC()
	if ts.Before(now.Add(-v.MaxAge)) || ts.After(now.Add(v.MaxAge)) {
		return ErrStaleTimestamp
	}

	provided, err := hex.DecodeString(sigHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(tsHeader))
	mac.Write([]byte{'.'})
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return ErrInvalidSignature
	}
	return nil
}

// SignHex computes the hex signature for "<timestamp>.<body>". Used by tests
// and provider simulators.
func SignHex(secret, timestampHeader string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestampHeader))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
