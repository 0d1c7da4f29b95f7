package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken signs and verifies user and device scoped JWT session tokens
// issued on accepted authentications.
type SessionToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewSessionToken builds a token helper using the provided secret.
func NewSessionToken(secretKey string) *SessionToken {
	return &SessionToken{
		secretKey: []byte(secretKey),
		ttl:       time.Hour,
	}
}

// WithTTL allows customising the expiration duration.
func (st *SessionToken) WithTTL(ttl time.Duration) *SessionToken {
	if ttl > 0 {
		st.ttl = ttl
	}
	return st
}

// Generate issues a JWT for the authenticated user and device pair.
func (st *SessionToken) Generate(userID, deviceID string) (string, error) {
	if len(st.secretKey) == 0 {
		return "", errors.New("session token secret is empty")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":   userID,
		"device_id": deviceID,
		"exp":       now.Add(st.ttl).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(st.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify validates the JWT and extracts the user and device identifiers.
func (st *SessionToken) Verify(tokenString string) (string, string, error) {
	if len(st.secretKey) == 0 {
		return "", "", errors.New("session token secret is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return st.secretKey, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", "", errors.New("invalid user_id claim")
	}
	deviceID, ok := claims["device_id"].(string)
	if !ok {
		return "", "", errors.New("invalid device_id claim")
	}
	return userID, deviceID, nil
}
