package security

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoSigningKey = errors.New("private key is not configured")
)

// RoleAdmin роль, которой разрешены все операции
const RoleAdmin = "admin"

// JWTManager проверяет RS256 токены и, при наличии приватного ключа, выпускает их.
// Реализует interfaces.AuthPort
type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// NewJWTManager создает менеджер. privateKeyPEM может быть пустым,
// тогда менеджер только проверяет токены
func NewJWTManager(privateKeyPEM, publicKeyPEM []byte, expiration time.Duration, issuer string) (*JWTManager, error) {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	m := &JWTManager{
		publicKey:  publicKey,
		expiration: expiration,
		issuer:     issuer,
		now:        time.Now,
	}

	if len(privateKeyPEM) > 0 {
		m.privateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}
	return m, nil
}

// Generate выпускает токен для субъекта
func (m *JWTManager) Generate(subject string, roles []string) (string, error) {
	if m.privateKey == nil {
		return "", ErrNoSigningKey
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   subject,
		},
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(m.privateKey)
}

// ValidateToken проверяет подпись, срок действия и издателя
func (m *JWTManager) ValidateToken(_ context.Context, tokenString string) (*interfaces.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &interfaces.Principal{Subject: claims.Subject, Roles: claims.Roles}, nil
}

// HasRole проверяет роль; admin имеет все роли
func (m *JWTManager) HasRole(principal *interfaces.Principal, role string) bool {
	if principal == nil {
		return false
	}
	for _, r := range principal.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}
