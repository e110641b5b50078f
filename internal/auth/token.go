// Package auth reads the storefront access token. Issuing tokens belongs to
// the account service; this side only verifies them.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const AccessTokenCookie = "access_token"

var (
	ErrNoSecret    = errors.New("token verification is not configured")
	ErrNoUserClaim = errors.New("token has no user_id claim")
)

// Claims is the subset of the account service token the storefront uses.
// Role is "ADMIN" for catalog operators and empty or "USER" otherwise.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ExtractAccessToken prefers the access_token cookie and falls back to a
// bearer Authorization header. It returns "" when neither is present.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// ParseToken verifies an HS256 token and returns its claims. Expired
// tokens and tokens without a user id are rejected.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == 0 {
		return nil, ErrNoUserClaim
	}
	return claims, nil
}
