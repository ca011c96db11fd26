package activitypub

import (
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignPostVerifies(t *testing.T) {
	key, _, _ := testKeyPair(t)
	s := testSigner(t)
	body := []byte(`{"type":"Create"}`)

	req := httptest.NewRequest(http.MethodPost, "https://remote.example/users/alice/inbox", strings.NewReader(string(body)))
	require.NoError(t, s.SignPost(req, body))

	assert.Equal(t, "remote.example", req.Header.Get("Host"))
	assert.NotEmpty(t, req.Header.Get("Date"))
	assert.True(t, strings.HasPrefix(req.Header.Get("Digest"), "SHA-256="))
	sig := req.Header.Get("Signature")
	assert.Contains(t, sig, `keyId="http://localhost/activitypub/actor#main-key"`)
	assert.Contains(t, sig, `algorithm="rsa-sha256"`)
	assert.NotContains(t, sig, "hs2019")
	assert.Contains(t, sig, `headers="(request-target) host date digest"`)

	req.Host = "remote.example"
	require.NoError(t, verifySigned(req, body, &key.PublicKey))
}

func TestSignPostTamperedBody(t *testing.T) {
	key, _, _ := testKeyPair(t)
	s := testSigner(t)
	req := httptest.NewRequest(http.MethodPost, "https://remote.example/inbox", nil)
	require.NoError(t, s.SignPost(req, []byte(`{"a":1}`)))
	req.Host = "remote.example"
	assert.Error(t, verifySigned(req, []byte(`{"a":2}`), &key.PublicKey))
}

func TestSignGet(t *testing.T) {
	s := testSigner(t)
	req := httptest.NewRequest(http.MethodGet, "https://remote.example/users/alice", nil)
	require.NoError(t, s.SignGet(req))
	assert.Empty(t, req.Header.Get("Digest"))
	sig := req.Header.Get("Signature")
	assert.Contains(t, sig, `algorithm="rsa-sha256"`)
	assert.NotContains(t, sig, "hs2019")
	assert.Contains(t, sig, `headers="(request-target) host date"`)
}

func TestKeyParsing(t *testing.T) {
	key, privPKCS1, pub := testKeyPair(t)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPKCS8 := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	for _, text := range []string{privPKCS1, privPKCS8} {
		parsed, err := ParsePrivateKey(text)
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	}

	pk, err := ParsePublicKey(pub)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pk))

	_, err = ParsePrivateKey("not a key")
	assert.Error(t, err)

	// the public half is derived when not configured
	s, err := NewSigner("k", privPKCS1, "")
	require.NoError(t, err)
	derived, err := ParsePublicKey(s.PublicKeyPEM())
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(derived))
}
