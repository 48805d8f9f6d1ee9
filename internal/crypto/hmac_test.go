package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() *HMACAuth {
	return &HMACAuth{
		Key:        "api-key-1",
		Secret:     base64.StdEncoding.EncodeToString([]byte("shhh")),
		Passphrase: "pass",
	}
}

func TestL2HeadersShape(t *testing.T) {
	h := testAuth().l2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1787234700)

	assert.Equal(t, "0xabc", h["POLY_ADDRESS"])
	assert.Equal(t, "api-key-1", h["POLY_API_KEY"])
	assert.Equal(t, "1787234700", h["POLY_TIMESTAMP"])
	assert.Equal(t, "pass", h["POLY_PASSPHRASE"])
	require.NotEmpty(t, h["POLY_SIGNATURE"])

	// Base64 output of HMAC-SHA256.
	raw, err := base64.StdEncoding.DecodeString(h["POLY_SIGNATURE"])
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestL2HeadersDeterministic(t *testing.T) {
	auth := testAuth()
	a := auth.l2HeadersAt("0xabc", "POST", "/order", "body", 100)
	b := auth.l2HeadersAt("0xabc", "POST", "/order", "body", 100)
	assert.Equal(t, a["POLY_SIGNATURE"], b["POLY_SIGNATURE"])
}

func TestL2HeadersSignatureCoversInputs(t *testing.T) {
	auth := testAuth()
	base := auth.l2HeadersAt("0xabc", "POST", "/order", "body", 100)

	diffBody := auth.l2HeadersAt("0xabc", "POST", "/order", "other", 100)
	assert.NotEqual(t, base["POLY_SIGNATURE"], diffBody["POLY_SIGNATURE"])

	diffPath := auth.l2HeadersAt("0xabc", "POST", "/cancel", "body", 100)
	assert.NotEqual(t, base["POLY_SIGNATURE"], diffPath["POLY_SIGNATURE"])

	diffTS := auth.l2HeadersAt("0xabc", "POST", "/order", "body", 101)
	assert.NotEqual(t, base["POLY_SIGNATURE"], diffTS["POLY_SIGNATURE"])
}
