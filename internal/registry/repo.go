// Package registry stores enrolled users, their face encodings, and the
// kiosk devices that submit recognitions.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrNotFound means no matching user exists.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail means the email is already enrolled and active.
	ErrDuplicateEmail = errors.New("email already enrolled")
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// User is an enrolled identity. Users are deactivated on removal, never
// hard-deleted, so attendance history stays intact.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment is a user's id, name, and primary encoding, the shape the
// matcher consumes.
type Enrollment struct {
	UserID   string
	Name     string
	Encoding []float32
}

// Repository persists users, face samples, and devices in Postgres.
// Encodings live in pgvector columns.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser enrolls a user with their primary encoding. A duplicate
// active email maps to ErrDuplicateEmail.
func (r *Repository) CreateUser(ctx context.Context, name, email, photoURL string, encoding []float32) (User, error) {
	u := User{
		ID:       uuid.NewString(),
		Name:     name,
		Email:    email,
		PhotoURL: photoURL,
		Active:   true,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, photo_url, encoding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.Name, u.Email, u.PhotoURL, pgvector.NewVector(encoding))
	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return u, nil
}

// GetByID returns a single user.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, photo_url, active, created_at
		FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhotoURL, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// ListUsers returns all active users ordered by enrollment time.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, photo_url, active, created_at
		FROM users WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhotoURL, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListActiveEncodings returns the primary encoding of every active user.
// Only primary encodings are matched against; samples are additive
// evidence and stay out of this set.
func (r *Repository) ListActiveEncodings(ctx context.Context) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, encoding FROM users WHERE active ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Enrollment
	for rows.Next() {
		var e Enrollment
		var vec pgvector.Vector
		if err := rows.Scan(&e.UserID, &e.Name, &vec); err != nil {
			return nil, err
		}
		e.Encoding = vec.Slice()
		res = append(res, e)
	}
	return res, rows.Err()
}

// Deactivate retires a user. Their attendance rows and samples remain.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSample stores an auxiliary encoding for a user. Samples are
// immutable once written.
func (r *Repository) AddSample(ctx context.Context, userID string, encoding []float32) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO face_samples (id, user_id, encoding)
		VALUES ($1, $2, $3)
	`, uuid.NewString(), userID, pgvector.NewVector(encoding))
	return err
}

// CountSamples returns the number of stored samples for a user.
func (r *Repository) CountSamples(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM face_samples WHERE user_id = $1
	`, userID).Scan(&n)
	return n, err
}
