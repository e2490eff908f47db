package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Store) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO users (id, email, username, password_hash, role, must_change_password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, q,
		u.ID,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.Role,
		u.MustChangePassword,
		u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	const q = `
		SELECT id, email, username, password_hash, role, must_change_password, created_at
		FROM users WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
		SELECT id, email, username, password_hash, role, must_change_password, created_at
		FROM users WHERE email = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdatePassword stores a new hash and clears the forced-change flag in
// the same statement, so the flag can never be cleared without a rotation.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `
		UPDATE users SET password_hash = $2, must_change_password = FALSE
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}
	return oneRowAffected(res)
}

func (s *Store) UpdateEmail(ctx context.Context, id, email string) error {
	const q = `UPDATE users SET email = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, email)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	return oneRowAffected(res)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM users WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return oneRowAffected(res)
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.MustChangePassword,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func oneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
