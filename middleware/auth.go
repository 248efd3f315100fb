package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"pagovecinal/models"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is unexported so values set by this package cannot collide with
// context values set elsewhere
type contextKey string

const (
	ctxKeyUserID contextKey = "user_id"
	ctxKeyEmail  contextKey = "email"
	ctxKeyRole   contextKey = "role"
)

// AuthMiddleware validates the bearer token and places the caller's identity
// in the request context
func AuthMiddleware(jwtKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
				tokenString = tokenString[7:]
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return jwtKey, nil
			})
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			userID, ok := claims["user_id"].(float64)
			if !ok {
				http.Error(w, "Invalid user_id in token", http.StatusUnauthorized)
				return
			}
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			r.Header.Set("X-User-ID", strconv.FormatUint(uint64(userID), 10))

			ctx := r.Context()
			ctx = context.WithValue(ctx, ctxKeyUserID, uint(userID))
			ctx = context.WithValue(ctx, ctxKeyEmail, email)
			ctx = context.WithValue(ctx, ctxKeyRole, role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(ctxKeyRole).(string)
		if !ok || role != string(models.UserRoleAdmin) {
			http.Error(w, "Not enough permissions", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext returns the authenticated caller's identity. The user
// is rebuilt from token claims; handlers that need the full record load it
// from the database by ID.
func GetUserFromContext(r *http.Request) (*models.User, error) {
	userID, ok := r.Context().Value(ctxKeyUserID).(uint)
	if !ok {
		return nil, fmt.Errorf("user_id not found in context")
	}

	email, _ := r.Context().Value(ctxKeyEmail).(string)
	role, _ := r.Context().Value(ctxKeyRole).(string)

	return &models.User{
		ID:    userID,
		Email: email,
		Role:  models.UserRole(role),
	}, nil
}
