package engagement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey    = []byte("super-secret-signing-key")
	testSecret = "whsec_" + base64.StdEncoding.EncodeToString(testKey)
	testNow    = time.Unix(1_770_000_000, 0)
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, 0, 0)
	require.NoError(t, err)
	v.now = func() time.Time { return testNow }
	return v
}

// sign computes the signature independently of Verifier.Sign.
func sign(id string, ts int64, body string) string {
	mac := hmac.New(sha256.New, testKey)
	mac.Write([]byte(id + "." + strconv.FormatInt(ts, 10) + "." + body))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func headersAt(ts int64, body string) Headers {
	return Headers{ID: "msg_2x", Timestamp: strconv.FormatInt(ts, 10), Signature: sign("msg_2x", ts, body)}
}

func TestNewVerifier(t *testing.T) {
	_, err := NewVerifier("", 0, 0)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewVerifier("whsec_***not-base64***", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidSecret)

	v, err := NewVerifier(testSecret, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPayload, v.MaxPayload())
}

func TestVerify_ValidSignature(t *testing.T) {
	v := newTestVerifier(t)
	body := `{"type":"email.opened","data":{}}`

	assert.NoError(t, v.Verify(headersAt(testNow.Unix(), body), []byte(body)))
}

func TestVerify_AnyOfSeveralSignatures(t *testing.T) {
	v := newTestVerifier(t)
	body := `{"type":"email.opened"}`
	h := headersAt(testNow.Unix(), body)
	h.Signature = "v1,Zm9yZ2Vk " + h.Signature + " v2,aWdub3JlZA=="

	assert.NoError(t, v.Verify(h, []byte(body)))
}

func TestVerify_Rejections(t *testing.T) {
	v := newTestVerifier(t)
	body := `{"type":"email.opened"}`
	now := testNow.Unix()

	tests := []struct {
		name    string
		headers Headers
		payload string
		want    error
	}{
		{"missing id", Headers{Timestamp: "1", Signature: "v1,x"}, body, ErrMissingHeaders},
		{"missing signature", Headers{ID: "a", Timestamp: "1"}, body, ErrMissingHeaders},
		{"301 seconds old", headersAt(now-301, body), body, ErrStaleTimestamp},
		{"301 seconds ahead", headersAt(now+301, body), body, ErrStaleTimestamp},
		{"non-numeric timestamp", Headers{ID: "a", Timestamp: "yesterday", Signature: "v1,x"}, body, ErrStaleTimestamp},
		{"tampered body", headersAt(now, body), `{"type":"email.clicked"}`, ErrBadSignature},
		{"wrong version", func() Headers {
			h := headersAt(now, body)
			h.Signature = strings.Replace(h.Signature, "v1,", "v0,", 1)
			return h
		}(), body, ErrBadSignature},
		{"too large", headersAt(now, body), strings.Repeat("x", DefaultMaxPayload+1), ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, v.Verify(tt.headers, []byte(tt.payload)), tt.want)
		})
	}
}

func TestVerify_EdgeOfWindowAccepted(t *testing.T) {
	v := newTestVerifier(t)
	body := `{}`
	assert.NoError(t, v.Verify(headersAt(testNow.Unix()-300, body), []byte(body)))
}

func TestHeadersFrom(t *testing.T) {
	h := http.Header{}
	h.Set("Svix-Id", "msg_1")
	h.Set("Svix-Timestamp", "123")
	h.Set("Svix-Signature", "v1,abc")

	assert.Equal(t, Headers{ID: "msg_1", Timestamp: "123", Signature: "v1,abc"}, HeadersFrom(h))
}
