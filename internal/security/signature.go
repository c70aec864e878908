package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature = errors.New("webhook signature is missing")
	ErrInvalidSignature = errors.New("webhook signature is invalid")
)

// SignatureVerifier проверяет HMAC-SHA256 подпись тела вебхука
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign возвращает подпись в base64
func (v *SignatureVerifier) Sign(body []byte) string {
	return base64.StdEncoding.EncodeToString(v.mac(body))
}

// Verify принимает подпись в hex или base64, с необязательным префиксом "sha256="
func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}

	expected := v.mac(body)
	for _, decode := range []func(string) ([]byte, error){hex.DecodeString, base64.StdEncoding.DecodeString} {
		if got, err := decode(signature); err == nil && hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func (v *SignatureVerifier) mac(body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return h.Sum(nil)
}
