package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quizd/quizd/internal/apperr"
)

type AuthService struct {
	hmac   []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewAuthService(secret, issuer string, ttl time.Duration) *AuthService {
	return &AuthService{hmac: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"` // "user" or "admin"
	jwt.RegisteredClaims
}

// UserID is the numeric subject of the token.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (a *AuthService) IssueJWT(userID int64, username, role string) (string, *Claims, error) {
	now := a.now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(a.hmac)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := c.UserID(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return c, nil
}

// Revocations answers whether a token id was logged out.
type Revocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// ErrorWriter renders an error response; the API package supplies its own.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func JWTMiddleware(a *AuthService, revoked Revocations, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			scheme, tok, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeErr(w, r, apperr.Unauthorized("Not authenticated"))
				return
			}
			claims, err := a.Parse(tok)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeErr(w, r, apperr.Unauthorized("Could not validate credentials"))
				return
			}
			gone, err := revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				writeErr(w, r, fmt.Errorf("check revocation: %w", err))
				return
			}
			if gone {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeErr(w, r, apperr.Unauthorized("Token has been revoked"))
				return
			}
			id, _ := claims.UserID()
			ctx := WithIdentity(r.Context(), Identity{
				UserID:    id,
				Username:  claims.Username,
				TokenID:   claims.ID,
				ExpiresAt: claims.ExpiresAt.Time,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
