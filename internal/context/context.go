package context

import "context"

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok
}

// MustUserIDFromContext is for handlers behind the auth middleware, where a
// missing user id is a programming error.
func MustUserIDFromContext(ctx context.Context) string {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		panic("user id is not set in context")
	}
	return userID
}
