package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes; a reset token must never pass as an identity token
const (
	PurposeIdentity = "identity"
	PurposeReset    = "password-reset"
)

var (
	// ErrTokenExpired means the token was valid but its expiry has passed
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid means the token failed signature or purpose checks
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims binds a user email and a purpose to the standard claims
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// TokenService issues and resolves signed identity tokens
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service signing with secret; ttl applies
// to identity tokens
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates an identity token bound to email
func (t *TokenService) Issue(email string) (string, error) {
	return t.issue(email, PurposeIdentity, t.ttl)
}

// IssueReset creates a short-lived password-reset token bound to email
func (t *TokenService) IssueReset(email string, ttl time.Duration) (string, error) {
	return t.issue(email, PurposeReset, ttl)
}

func (t *TokenService) issue(email, purpose string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email:   email,
		Purpose: purpose,
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve returns the email bound to an identity token
func (t *TokenService) Resolve(tokenString string) (string, error) {
	return t.resolve(tokenString, PurposeIdentity)
}

// ResolveReset returns the email bound to a password-reset token
func (t *TokenService) ResolveReset(tokenString string) (string, error) {
	return t.resolve(tokenString, PurposeReset)
}

func (t *TokenService) resolve(tokenString, purpose string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid || claims.Email == "" || claims.Purpose != purpose {
		return "", ErrTokenInvalid
	}
	return claims.Email, nil
}
