package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scribe-notes/server/domain"
)

// ErrInvalidToken covers every token failure: bad signature, malformed
// claims, expiry. Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies the bearer tokens that authenticate both REST
// calls and websocket handshakes.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID domain.UserID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify resolves a token to the user identity it was issued for.
func (t *Tokens) Verify(tokenStr string) (domain.UserID, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.UserID{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return domain.UserID{}, ErrInvalidToken
	}
	return userID, nil
}
