package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "auth-token"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the session token payload issued by the login service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

type TokenVerifier struct {
	key []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{key: []byte(secret)}
}

// Verify parses an HS256 session token and returns its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Sign issues a token carrying claims. The API itself never hands out tokens.
func (v *TokenVerifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

type userIDKey struct{}

// UserIDFrom returns the authenticated user stored by UserAuthMiddleware.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// sessionToken reads the bearer token, falling back to the session cookie.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
