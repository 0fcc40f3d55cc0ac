package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

type statePayload struct {
	TenantID   string `json:"tenantId"`
	ReturnTo   string `json:"returnTo"`
	IssuedAtMs int64  `json:"issuedAtMs"`
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	in := statePayload{TenantID: "org_42", ReturnTo: "/settings", IssuedAtMs: 1735689600000}
	token, err := codec.Encrypt(in)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	iv, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	require.Len(t, iv, 12)
	tag, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.Len(t, tag, 16)

	var out statePayload
	require.NoError(t, codec.Decrypt(token, &out))
	require.Equal(t, in, out)
}

func TestCodec_IVUnique(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	payload := map[string]string{"tenantId": "org_1"}
	first, err := codec.Encrypt(payload)
	require.NoError(t, err)
	second, err := codec.Encrypt(payload)
	require.NoError(t, err)

	require.NotEqual(t, strings.Split(first, ".")[0], strings.Split(second, ".")[0])
}

func TestCodec_TamperDetection(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	token, err := codec.Encrypt(statePayload{TenantID: "org_42", ReturnTo: "/cases"})
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	for _, idx := range []int{1, 2} {
		raw, err := base64.RawURLEncoding.DecodeString(parts[idx])
		require.NoError(t, err)
		for bit := 0; bit < 8; bit++ {
			flipped := make([]byte, len(raw))
			copy(flipped, raw)
			flipped[0] ^= 1 << bit

			mutated := make([]string, 3)
			copy(mutated, parts)
			mutated[idx] = base64.RawURLEncoding.EncodeToString(flipped)

			var out statePayload
			err := codec.Decrypt(strings.Join(mutated, "."), &out)
			require.ErrorIs(t, err, ErrAuthentication)
		}
	}
}

func TestCodec_WrongKey(t *testing.T) {
	sealer, err := NewCodec(testKey(t))
	require.NoError(t, err)
	opener, err := NewCodec(testKey(t))
	require.NoError(t, err)

	token, err := sealer.Encrypt(statePayload{TenantID: "org_42"})
	require.NoError(t, err)

	var out statePayload
	require.ErrorIs(t, opener.Decrypt(token, &out), ErrAuthentication)
}

func TestCodec_MalformedTokens(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	for _, token := range []string{
		"",
		"a.b",
		"a.b.c.d",
		"..",
		"a..c",
		"!!!.b64.b64",
		"AAAA.b64.b64", // iv decodes to 3 bytes, not 12
	} {
		var out statePayload
		err := codec.Decrypt(token, &out)
		require.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestNewCodec_KeyValidation(t *testing.T) {
	for _, encoded := range []string{
		"",
		"not base64!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		base64.StdEncoding.EncodeToString(make([]byte, 16)),
		base64.StdEncoding.EncodeToString(make([]byte, 33)),
	} {
		_, err := NewCodec(encoded)
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", encoded)
	}

	// base64url keys are accepted too
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	_, err = NewCodec(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
}
