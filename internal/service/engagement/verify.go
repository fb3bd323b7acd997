package engagement

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Webhook header names.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

const (
	// DefaultTolerance is the freshness window for webhook timestamps.
	DefaultTolerance = 5 * time.Minute
	// DefaultMaxPayload is the largest accepted webhook body in bytes.
	DefaultMaxPayload = 50_000

	secretPrefix = "whsec_"
)

// Headers carries the signature headers of one delivery.
type Headers struct {
	ID        string
	Timestamp string
	Signature string
}

// HeadersFrom extracts the signature headers from h.
func HeadersFrom(h http.Header) Headers {
	return Headers{
		ID:        h.Get(HeaderID),
		Timestamp: h.Get(HeaderTimestamp),
		Signature: h.Get(HeaderSignature),
	}
}

// Verifier checks webhook signatures. It is safe for concurrent use.
type Verifier struct {
	key        []byte
	tolerance  time.Duration
	maxPayload int
	now        func() time.Time
}

// NewVerifier creates a verifier for secret. An empty secret is
// ErrNotConfigured; the webhook must then be refused, never accepted
// unverified.
func NewVerifier(secret string, tolerance time.Duration, maxPayload int) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNotConfigured
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, ErrInvalidSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Verifier{key: key, tolerance: tolerance, maxPayload: maxPayload, now: time.Now}, nil
}

// MaxPayload returns the body size ceiling in bytes.
func (v *Verifier) MaxPayload() int { return v.maxPayload }

// CheckHeaders rejects deliveries with missing headers or a timestamp more
// than the tolerance away from now in either direction.
func (v *Verifier) CheckHeaders(h Headers) error {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return ErrMissingHeaders
	}
	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrStaleTimestamp
	}
	return nil
}

// Verify runs every check in order: headers, timestamp, size, signature.
func (v *Verifier) Verify(h Headers, payload []byte) error {
	if err := v.CheckHeaders(h); err != nil {
		return err
	}
	if len(payload) > v.maxPayload {
		return ErrPayloadTooLarge
	}
	return v.VerifySignature(h, payload)
}

// VerifySignature accepts if any v1 token matches the expected signature.
func (v *Verifier) VerifySignature(h Headers, payload []byte) error {
	expected := []byte(v.Sign(h.ID, h.Timestamp, payload))
	for _, token := range strings.Fields(h.Signature) {
		version, sig, ok := strings.Cut(token, ",")
		if !ok || version != "v1" || sig == "" {
			continue
		}
		if subtle.ConstantTimeCompare(expected, []byte(sig)) == 1 {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign returns the base64 HMAC-SHA256 of "id.timestamp.payload".
func (v *Verifier) Sign(id, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
