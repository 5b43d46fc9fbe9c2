package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	UsernameKey    contextKey = "username"
	DisplayNameKey contextKey = "display_name"
)

// TokenValidator is what the middleware needs from the auth service.
// The interface keeps the packages loosely coupled.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type Middleware struct {
	validator TokenValidator
}

func NewMiddleware(v TokenValidator) *Middleware {
	return &Middleware{validator: v}
}

// Handle extracts the bearer token from the Authorization header, or
// falls back to a ?token= query param — browser WebSocket clients cannot
// set headers on the upgrade request.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := m.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, DisplayNameKey, claims.DisplayName)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity pulls the authenticated identity back out of the request
// context. ok is false if the middleware did not run.
func Identity(ctx context.Context) (userID, username, displayName string, ok bool) {
	userID, ok1 := ctx.Value(UserIDKey).(string)
	username, ok2 := ctx.Value(UsernameKey).(string)
	displayName, _ = ctx.Value(DisplayNameKey).(string)
	return userID, username, displayName, ok1 && ok2
}
