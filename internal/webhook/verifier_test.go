package webhook_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

const testSecret = "super-secret-signing-key"

func fixedVerifier(now time.Time) *webhook.Verifier {
	v := webhook.NewVerifier(testSecret, 600*time.Second)
	v.Now = func() time.Time { return now }
	return v
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`[{"event":"delivered","email":"a@b.com","timestamp":1699999999}]`)
	ts := strconv.FormatInt(now.Unix(), 10)

	sig := webhook.SignHex(testSecret, ts, body)

	v := fixedVerifier(now)
	if err := v.Verify(sig, ts, body); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`[{"event":"delivered"}]`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := webhook.SignHex(testSecret, ts, body)

	tampered := []byte(`[{"event":"delivered"} ]`)
	v := fixedVerifier(now)
	if err := v.Verify(sig, ts, tampered); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`[]`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := webhook.SignHex("a-different-secret!", ts, body)

	v := fixedVerifier(now)
	if err := v.Verify(sig, ts, body); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`[]`)
	// correct signature, but 11 minutes old
	old := now.Add(-11 * time.Minute)
	ts := strconv.FormatInt(old.Unix(), 10)
	sig := webhook.SignHex(testSecret, ts, body)

	v := fixedVerifier(now)
	if err := v.Verify(sig, ts, body); !errors.Is(err, webhook.ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerifyRejectsMissingAndGarbageHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := fixedVerifier(now)

	if err := v.Verify("", "1700000000", []byte(`[]`)); !errors.Is(err, webhook.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if err := v.Verify("abcd", "not-a-number", []byte(`[]`)); !errors.Is(err, webhook.ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	if err := v.Verify("zzzz-not-hex", ts, []byte(`[]`)); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for non-hex signature, got %v", err)
	}
}
