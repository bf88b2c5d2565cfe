package http

import (
	"context"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/security"
)

type claimsKey struct{}

func withClaims(ctx context.Context, claims *security.UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// UserIDFromContext returns the authenticated caller's id.
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(claimsKey{}).(*security.UserClaims)
	if !ok || claims.UserID == "" {
		return "", domain.ErrAuthenticationRequired
	}
	return claims.UserID, nil
}
