package http

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/quizd/quizd/internal/apperr"
	authmw "github.com/quizd/quizd/internal/auth/middleware"
	"github.com/quizd/quizd/internal/user"
)

type UserStore interface {
	Register(ctx context.Context, in user.Registration) (user.User, error)
	Authenticate(ctx context.Context, username, password string) (user.User, error)
	Get(ctx context.Context, id int64) (user.User, error)
	List(ctx context.Context, skip, limit int) ([]user.User, error)
	ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error
	RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func RegisterHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req user.Registration
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		u, err := users.Register(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, u)
	}
}

// LoginHandler accepts JSON or an OAuth2 password-grant form.
func LoginHandler(users UserStore, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "application/x-www-form-urlencoded", "multipart/form-data":
			if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
				writeError(w, r, apperr.Validation("invalid form body"))
				return
			}
			req.Username = r.FormValue("username")
			req.Password = r.FormValue("password")
			if err := validateStruct(&req); err != nil {
				writeError(w, r, err)
				return
			}
		default:
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, err)
				return
			}
		}
		u, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, err)
			return
		}
		tok, _, err := authSvc.IssueJWT(u.ID, u.Username, u.Role())
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer"})
	}
}

// LogoutHandler revokes the token used for this request.
func LogoutHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := authmw.IdentityFromContext(r.Context())
		if err := users.RevokeToken(r.Context(), id.TokenID, id.UserID, id.ExpiresAt); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ChangePasswordHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := authmw.IdentityFromContext(r.Context())
		var req changePasswordReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := users.ChangePassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func MeHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := authmw.IdentityFromContext(r.Context())
		u, err := users.Get(r.Context(), id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}

func ListUsersHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, limit := page(r)
		list, err := users.List(r.Context(), skip, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
