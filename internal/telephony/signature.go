package telephony

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the request header carrying the ElevenLabs webhook signature.
const SignatureHeader = "elevenlabs-signature"

var ErrInvalidSignature = errors.New("telephony: invalid webhook signature")

// ParseSignatureHeader splits "t=<timestamp>,v0=<hex digest>".
// Unknown parts are ignored; ok is false when t or v0 is missing.
func ParseSignatureHeader(header string) (timestamp, digest string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v0":
			digest = v
		}
	}
	if timestamp == "" || digest == "" {
		return "", "", false
	}
	return timestamp, digest, true
}

// SignPayload returns the v0 digest for body at timestamp.
func SignPayload(body []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatSignatureHeader builds a header value VerifySignature accepts.
func FormatSignatureHeader(body []byte, secret, timestamp string) string {
	return "t=" + timestamp + ",v0=" + SignPayload(body, secret, timestamp)
}

// VerifySignature checks an HMAC-SHA256 signature over "<timestamp>.<body>".
// It fails closed: an empty secret or a malformed header never verifies.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	ts, digest, ok := ParseSignatureHeader(header)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(SignPayload(body, secret, ts))
	return hmac.Equal(got, want)
}

// Verifier adds an optional timestamp window on top of VerifySignature.
// Tolerance zero accepts any timestamp.
type Verifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v Verifier) Verify(body []byte, header string) error {
	if !VerifySignature(body, header, v.Secret) {
		return ErrInvalidSignature
	}
	if v.Tolerance <= 0 {
		return nil
	}
	ts, _, _ := ParseSignatureHeader(header)
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	age := now().Sub(time.Unix(sec, 0))
	if age < 0 {
		age = -age
	}
	if age > v.Tolerance {
		return ErrInvalidSignature
	}
	return nil
}
