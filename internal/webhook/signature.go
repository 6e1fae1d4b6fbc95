package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
)

// DefaultTolerance is how far a signature timestamp may drift from the
// local clock before the signature is rejected. Matches Stripe's own
// recommendation.
const DefaultTolerance = 5 * time.Minute

const signingVersion = "v1"

// Verifier authenticates raw webhook payloads against the shared
// signing secret using Stripe's scheme: the header carries
// "t=<unix>,v1=<hex>[,v1=<hex>...]" and each v1 value is
// HMAC-SHA256(secret, "<t>.<payload>").
//
// The secret is process-wide configuration; it is never logged and
// never included in returned errors.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier with the default timestamp tolerance.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// NewVerifierWithTolerance creates a Verifier with an explicit
// tolerance. Zero disables the timestamp check.
func NewVerifierWithTolerance(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify recomputes the expected signature over payload and compares it
// in constant time against every v1 candidate from the header.
//
// Returns domain.ErrMalformedSignatureHeader when the header cannot be
// parsed into a timestamp plus at least one candidate, and
// domain.ErrBadSignature when no candidate matches or the timestamp is
// outside the tolerance window. Must run before any parsing of payload.
func (v *Verifier) Verify(payload []byte, sigHeader string) error {
	timestamp, candidates, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		drift := v.now().Sub(time.Unix(timestamp, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > v.tolerance {
			return domain.ErrBadSignature
		}
	}

	expected := computeSignature(v.secret, timestamp, payload)
	for _, candidate := range candidates {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return domain.ErrBadSignature
}

// parseSignatureHeader splits "t=...,v1=...,v0=..." into the timestamp
// and the decoded v1 candidates. Unknown schemes (v0 etc.) are skipped,
// not rejected, so the provider can rotate schemes without breaking us.
func parseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, domain.ErrMalformedSignatureHeader
	}

	var (
		timestamp  int64 = -1
		candidates [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, domain.ErrMalformedSignatureHeader
			}
			timestamp = ts
		case signingVersion:
			sig, err := hex.DecodeString(kv[1])
			if err != nil {
				// A single undecodable candidate does not invalidate the
				// header; another v1 entry may still match.
				continue
			}
			candidates = append(candidates, sig)
		}
	}

	if timestamp < 0 || len(candidates) == 0 {
		return 0, nil, domain.ErrMalformedSignatureHeader
	}
	return timestamp, candidates, nil
}

// computeSignature signs "<timestamp>.<payload>" with HMAC-SHA256 over
// the exact bytes received.
func computeSignature(secret string, timestamp int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
