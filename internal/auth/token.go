// Package auth issues and verifies session tokens. Service handles
// registration and login; Guard resolves the session cookie on each request
// and never rejects one.
package auth

import (
	"errors"
	"time"

	"github.com/Tyrowin/talkroom/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = apperr.Token("invalid token", nil)
	ErrTokenExpired = apperr.Token("token expired", nil)
)

// Claims embeds the registered claims plus the user id, serialized as "id".
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"id"`
}

// GenerateToken signs an HS256 token for userID that expires after ttl. It
// returns the token and its expiry.
func GenerateToken(userID int64, secretKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expires, nil
}

// ParseToken verifies tokenString and returns the embedded user id.
// Expired tokens yield ErrTokenExpired; anything else that fails yields
// ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}

	if !token.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
