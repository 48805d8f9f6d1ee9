package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// HMACAuth holds the derived API credentials for L2-authenticated requests
// against the Polymarket CLOB.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, base64 encoded
	Passphrase string // API passphrase
}

// L2Headers returns the HTTP headers for an authenticated CLOB request.
// The secret is base64-decoded before being used as the HMAC key, and the
// signature covers timestamp+method+path+body.
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.l2HeadersAt(address, method, path, body, time.Now().Unix())
}

// l2HeadersAt is the timestamp-injected variant used by tests.
func (h *HMACAuth) l2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// A malformed secret yields an obviously-wrong signature instead
		// of a panic; the API will reject the request.
		secretBytes = []byte(h.Secret)
	}

	sig := hmacSHA256Base64(secretBytes, ts+method+path+body)

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result base64 standard-encoded.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
