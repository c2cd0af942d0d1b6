package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("repo: user not found")
	// ErrDuplicate is returned when the email is already registered.
	ErrDuplicate = errors.New("repo: email already registered")
)

// uniqueViolation is the postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// UserRow is a credential row in the users table.
type UserRow struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	PasswordAlgo string     `db:"password_algo"`
	MetadataRaw  []byte     `db:"user_metadata"`
	LastSignInAt *time.Time `db:"last_sign_in_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Metadata decodes user_metadata. Undecodable metadata is treated as empty.
func (u *UserRow) Metadata() map[string]any {
	md := map[string]any{}
	if len(u.MetadataRaw) > 0 {
		_ = json.Unmarshal(u.MetadataRaw, &md)
	}
	return md
}

// User projects the row onto the provider-facing user.
func (u *UserRow) User() *entity.User {
	return &entity.User{
		ID:               u.ID,
		Aud:              "authenticated",
		Role:             "authenticated",
		Email:            u.Email,
		EmailConfirmedAt: &u.CreatedAt,
		UserMetadata:     u.Metadata(),
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users and profiles tables if they do not exist.
// Prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  user_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  last_sign_in_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS profiles (
  id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  email TEXT NOT NULL,
  full_name VARCHAR(100),
  avatar_url TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return errors.Wrap(err, "ensure users table")
}

// Create inserts the user and provisions its profile row in one transaction.
func (r *UserRepo) Create(ctx context.Context, u *UserRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin create user")
	}
	defer func() { _ = tx.Rollback() }()

	const insertUser = `INSERT INTO users (id, email, password_hash, password_algo, user_metadata)
		VALUES (:id, :email, :password_hash, :password_algo, COALESCE(:user_metadata, '{}'::jsonb))
		RETURNING created_at, updated_at`
	params := map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"password_algo": u.PasswordAlgo,
		"user_metadata": json.RawMessage(u.MetadataRaw),
	}
	if len(u.MetadataRaw) == 0 {
		params["user_metadata"] = json.RawMessage("{}")
	}
	rows, err := sqlx.NamedQueryContext(ctx, tx, insertUser, params)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert user")
	}
	if rows.Next() {
		if err := rows.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan user")
		}
	}
	rows.Close()

	var fullName *string
	if name, ok := u.Metadata()["full_name"].(string); ok && name != "" {
		fullName = &name
	}
	const insertProfile = `INSERT INTO profiles (id, email, full_name, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	if _, err := tx.ExecContext(ctx, insertProfile, u.ID, u.Email, fullName, u.CreatedAt); err != nil {
		return errors.Wrap(err, "provision profile")
	}
	return errors.Wrap(tx.Commit(), "commit create user")
}

const selectUser = `SELECT id, email, password_hash, password_algo, user_metadata, last_sign_in_at, created_at, updated_at FROM users`

// GetByEmail returns a user matched by email (case-insensitive due to citext).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*UserRow, error) {
	return r.get(ctx, selectUser+` WHERE email=$1`, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*UserRow, error) {
	return r.get(ctx, selectUser+` WHERE id=$1`, id)
}

func (r *UserRepo) get(ctx context.Context, q string, arg any) (*UserRow, error) {
	var row UserRow
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &row, nil
}

// TouchSignIn records a successful authentication.
func (r *UserRepo) TouchSignIn(ctx context.Context, id string) error {
	const q = `UPDATE users SET last_sign_in_at=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return errors.Wrap(err, "touch sign in")
}

