// internal/auth/middleware/attach_role.go
package auth

import (
	"context"
	"net/http"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/rbac"
)

// RoleSource is the authoritative admin flag lookup.
type RoleSource interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// AttachRoleFromDB puts the caller's current role into the context. The role
// claim in the token is informational only.
func AttachRoleFromDB(src RoleSource, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := IdentityFromContext(ctx)
			if !ok {
				writeErr(w, r, apperr.Unauthorized("Not authenticated"))
				return
			}
			admin, err := src.IsAdmin(ctx, id.UserID)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			role := "user"
			if admin {
				role = "admin"
			}
			next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
		})
	}
}
