package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/db"
)

const bcryptCost = 12

type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	PasswordHash string    `json:"-"`
}

// Role is the rbac role name for the user.
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}

type Registration struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbh *sql.DB) *Store {
	return &Store{db: dbh, now: time.Now}
}

const userCols = `id, full_name, username, phone, is_admin, created_at, password_hash`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Phone, &u.IsAdmin, &created, &u.PasswordHash); err != nil {
		return User{}, err
	}
	u.CreatedAt = db.FromMillis(created)
	return u, nil
}

// Register creates a user. Username and phone must both be unused.
func (s *Store) Register(ctx context.Context, in Registration) (User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	var u User
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var taken string
		err := tx.QueryRowContext(ctx,
			`SELECT CASE WHEN username=$1 THEN 'username' ELSE 'phone' END FROM users WHERE username=$1 OR phone=$2 LIMIT 1`,
			in.Username, in.Phone).Scan(&taken)
		switch {
		case err == nil:
			return apperr.Conflict("A user with this %s already exists", taken)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		u, err = insertUser(ctx, tx, in.FullName, in.Username, in.Phone, hash, false, s.now())
		return err
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func insertUser(ctx context.Context, q db.Queryer, fullName, username, phone, hash string, admin bool, now time.Time) (User, error) {
	row := q.QueryRowContext(ctx,
		`INSERT INTO users (full_name, username, phone, password_hash, is_admin, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+userCols,
		fullName, username, phone, hash, admin, db.Millis(now))
	u, err := scanUser(row)
	if db.IsUniqueViolation(err) {
		return User{}, apperr.Conflict("A user with this username or phone already exists")
	}
	return u, err
}

// Authenticate returns the user when username and password match.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.Unauthorized("Incorrect username or password")
	}
	if err != nil {
		return User{}, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return User{}, apperr.Unauthorized("Incorrect username or password")
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("User not found")
	}
	return u, err
}

func (s *Store) List(ctx context.Context, skip, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ChangePassword replaces the hash after checking the old password.
func (s *Store) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var stored string
		err := tx.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		if !VerifyPassword(stored, oldPassword) {
			return apperr.Forbidden("Incorrect old password")
		}
		_, err = tx.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
		return err
	})
}

// EnsureAdmin creates the bootstrap admin if the username is free, or
// promotes and re-keys it otherwise. passwordHash must already be bcrypt.
func (s *Store) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("admin password hash: %w", err)
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET is_admin=$1, password_hash=$2 WHERE username=$3`, true, passwordHash, username)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = insertUser(ctx, tx, "Administrator", username, "admin:"+username, passwordHash, true, s.now())
		return err
	})
}

// IsAdmin is the authoritative role lookup used on every authenticated request.
func (s *Store) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var admin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id=$1`, id).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.Unauthorized("User no longer exists")
	}
	return admin, err
}

// RevokeToken records a token id so it is refused until it expires.
func (s *Store) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, db.Millis(s.now())); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO revoked_tokens (jti, user_id, expires_at) VALUES ($1,$2,$3) ON CONFLICT (jti) DO NOTHING`,
			jti, userID, db.Millis(expiresAt))
		return err
	})
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE jti=$1`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
