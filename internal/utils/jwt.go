package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var parseJWT = func(tokenStr string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, keyFunc)
}

var (
	ErrMissingToken    = errors.New("missing or malformed bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingIdentity = errors.New("token carries no user identity")
)

// ExtractTokenFromHeader extracts the token from an Authorization header value.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// TokenFromRequest reads the bearer token from the Authorization header or,
// for browser WebSocket handshakes that cannot set headers, the token query
// parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		return ExtractTokenFromHeader(authz)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// VerifyToken checks the HMAC signature and expiry and returns the user ID.
func VerifyToken(tokenStr string, secret []byte) (string, error) {
	token, err := parseJWT(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	return GetUserIDFromClaims(claims)
}

// GetUserIDFromClaims prefers the userId claim and falls back to sub.
func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, key := range []string{"userId", "sub"} {
		v, ok := claims[key]
		if !ok {
			continue
		}
		switch id := v.(type) {
		case string:
			if id != "" {
				return id, nil
			}
		case float64:
			// JWT numbers get decoded as float64
			return fmt.Sprintf("%d", int64(id)), nil
		}
	}
	return "", ErrMissingIdentity
}
