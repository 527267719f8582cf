package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Claim names, in lookup order, that carry the user identifier.
const (
	jwtClaimSubject = "sub"
	jwtClaimUserID  = "user_id"
)

var ErrNoUserInContext = errors.New("user claims not found in context")

// GetUserIDFromContext returns the authenticated user identifier.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", ErrNoUserInContext
	}
	return userIDFromClaims(claims)
}

// WithUserID returns a context authenticated as userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{jwtClaimSubject: userID})
}

func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range []string{jwtClaimSubject, jwtClaimUserID} {
		raw, ok := claims[name]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if v == "" {
				return "", fmt.Errorf("empty '%s' claim in token", name)
			}
			return v, nil
		case float64:
			if v != float64(int64(v)) || v <= 0 {
				return "", fmt.Errorf("invalid '%s' claim: %v", name, v)
			}
			return fmt.Sprintf("%d", int64(v)), nil
		default:
			return "", fmt.Errorf("invalid type for '%s' claim: %T", name, raw)
		}
	}
	return "", fmt.Errorf("missing '%s' claim in token", jwtClaimSubject)
}
