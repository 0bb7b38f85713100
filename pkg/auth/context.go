package auth

import (
	"context"
	"errors"
)

// UserContext represents the acting user of a request.
type UserContext struct {
	UserID string
	Email  string
	RoleID int
}

// IsPublic reports whether the user is the anonymous caller.
func (u *UserContext) IsPublic() bool {
	return u == nil || u.UserID == ""
}

type contextKey string

const UserContextKey contextKey = "user"

// GetUserFromContext extracts user from context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

// SetUserInContext adds user to context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
