package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller: user id plus the property ids the
// session grants access to. The core trusts this set; it performs no
// authorization beyond membership checks against it.
type Identity struct {
	UserID     string
	Properties []string
}

func (id Identity) CanAccessProperty(propertyID string) bool {
	for _, p := range id.Properties {
		if p == propertyID {
			return true
		}
	}
	return false
}

type ctxKey int

const identityKey ctxKey = 0

func identityFrom(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// authMiddleware validates an HS256 bearer token and stores the caller
// identity in the request context. Claims: "sub" is the user id,
// "properties" the accessible property ids.
func authMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			identity := Identity{}
			if sub, ok := claims["sub"].(string); ok {
				identity.UserID = sub
			}
			if identity.UserID == "" {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			if props, ok := claims["properties"].([]interface{}); ok {
				for _, p := range props {
					if s, ok := p.(string); ok {
						identity.Properties = append(identity.Properties, s)
					}
				}
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateToken mints a session token; used by tests and operator tooling.
func GenerateToken(secret []byte, userID string, properties []string) (string, error) {
	claims := jwt.MapClaims{
		"sub":        userID,
		"properties": properties,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
