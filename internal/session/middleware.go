package session

import (
	"context"
	"net/http"
	"strings"

	"authcore/internal/httpjson"
	"authcore/internal/users"
)

type contextKey string

const identityContextKey contextKey = "authcore_identity"

func WithIdentity(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, identityContextKey, c)
}

func IdentityFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(identityContextKey).(*Claims)
	return c, ok
}

// Authenticate gates a handler on a valid bearer token. A missing or
// malformed Authorization header is 401; a token that fails verification
// is 403. The two are kept distinct on purpose.
func Authenticate(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")
			claims, err := svc.Parse(token)
			if err != nil {
				httpjson.Error(w,http.StatusForbidden, "invalid_token", "invalid or expired token")
				return
			}
			ctx := WithIdentity(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFreshPassword blocks identities still carrying the forced
// password-change flag. Must run after Authenticate.
func RequireFreshPassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := IdentityFromContext(r.Context())
		if !ok {
			httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
			return
		}
		if claims.MustChangePassword {
			httpjson.Error(w,http.StatusForbidden, "password_change_required",
				"you must change your password before using this endpoint")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole restricts a handler to identities with exactly the given
// role. Must run after Authenticate.
func RequireRole(next http.Handler, role users.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := IdentityFromContext(r.Context())
		if !ok {
			httpjson.Error(w,http.StatusUnauthorized, "unauthenticated", "no token provided")
			return
		}
		if claims.Role != role {
			httpjson.Error(w,http.StatusForbidden, "role_forbidden",
				"you do not have access to this resource")
			return
		}
		next.ServeHTTP(w, r)
	})
}
