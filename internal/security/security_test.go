package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeys(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func TestJWTManager_RoundTrip(t *testing.T) {
	priv, pub := generateKeys(t)
	m, err := NewJWTManager(priv, pub, time.Hour, "gomarket")
	require.NoError(t, err)

	token, err := m.Generate("user-1", []string{"sync:write"})
	require.NoError(t, err)

	principal, err := m.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.Subject)
	assert.True(t, m.HasRole(principal, "sync:write"))
	assert.False(t, m.HasRole(principal, "sync:admin"))
}

func TestJWTManager_Expired(t *testing.T) {
	priv, pub := generateKeys(t)
	m, err := NewJWTManager(priv, pub, time.Minute, "gomarket")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := m.Generate("user-1", nil)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongIssuerAndKey(t *testing.T) {
	priv, pub := generateKeys(t)
	other, err := NewJWTManager(priv, pub, time.Hour, "someone-else")
	require.NoError(t, err)
	token, err := other.Generate("user-1", nil)
	require.NoError(t, err)

	m, err := NewJWTManager(nil, pub, time.Hour, "gomarket")
	require.NoError(t, err)
	_, err = m.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, otherPub := generateKeys(t)
	strangers, err := NewJWTManager(nil, otherPub, time.Hour, "someone-else")
	require.NoError(t, err)
	_, err = strangers.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Generate("x", nil)
	assert.ErrorIs(t, err, ErrNoSigningKey)
}

func TestJWTManager_AdminHasAllRoles(t *testing.T) {
	m := &JWTManager{}
	assert.True(t, m.HasRole(&interfaces.Principal{Roles: []string{RoleAdmin}}, "sync:write"))
	assert.False(t, m.HasRole(nil, "sync:write"))
}

func TestSignatureVerifier(t *testing.T) {
	v := NewSignatureVerifier("shhh")
	body := []byte(`{"id": 42}`)
	b64 := v.Sign(body)

	assert.NoError(t, v.Verify(body, b64))
	assert.NoError(t, v.Verify(body, "sha256="+b64))
	assert.NoError(t, v.Verify(body, hex.EncodeToString(v.mac(body))))

	assert.ErrorIs(t, v.Verify(body, ""), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify([]byte(`{"id": 43}`), b64), ErrInvalidSignature)
	assert.ErrorIs(t, NewSignatureVerifier("other").Verify(body, b64), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, "%%%"), ErrInvalidSignature)
}
