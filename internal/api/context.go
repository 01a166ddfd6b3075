package api

import "context"

type contextKey string

const (
	userIDKey contextKey = "userID"
	adminKey  contextKey = "admin"
)

// UserIDFromContext extracts the user ID from the context.
// Returns empty string if not present.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}

	return ""
}

// IsAdminFromContext reports whether the request comes from a site
// administrator.
func IsAdminFromContext(ctx context.Context) bool {
	admin, _ := ctx.Value(adminKey).(bool)

	return admin
}

// withUser returns a new context carrying the user's identity.
func withUser(ctx context.Context, userID string, admin bool) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)

	return context.WithValue(ctx, adminKey, admin)
}
