package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mindmap-backend/internal/host"
	"mindmap-backend/pkg/api"
	"mindmap-backend/pkg/auth"
)

// Authenticate resolves the acting user of a request. Requests without a
// token run as the public user with publicRoleID; a token that fails
// validation is rejected with 401. A nil validator treats every request as
// public.
func Authenticate(validator *auth.JWTValidator, publicRoleID int, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if validator == nil || token == "" {
				ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{RoleID: publicRoleID})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
					zap.String("request_id", GetRequestID(r.Context())),
				)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					api.Error(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					api.Error(w, http.StatusUnauthorized, "Invalid token signature")
				default:
					api.Error(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				RoleID: claims.RoleID,
			})
			logger.Debug("Request authenticated",
				zap.String("user_id", claims.UserID),
				zap.Int("role_id", claims.RoleID),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser returns the host user of the request. Anonymous callers get
// a user without id carrying the public role.
func CurrentUser(ctx context.Context) *host.User {
	uc, err := auth.GetUserFromContext(ctx)
	if err != nil {
		return host.PublicUser(0)
	}
	if uc.IsPublic() {
		return host.PublicUser(uc.RoleID)
	}
	return &host.User{ID: uc.UserID, Email: uc.Email, RoleID: uc.RoleID}
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(h)
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}
