package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is one attendance row. At most one exists per (user, day); it is
// created on the first check-in of the day and mutated in place afterwards.
type Record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Day        time.Time  `json:"day"`
	CheckInAt  time.Time  `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at,omitempty"`
	Confidence float64    `json:"confidence"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RecordWithName is a record annotated with the user's display name for
// dashboard views.
type RecordWithName struct {
	Record
	Name string `json:"name"`
}

// Ledger is the persistence contract for attendance rows. Split out as an
// interface so the service can be tested against an in-memory fake.
type Ledger interface {
	UpsertCheckIn(ctx context.Context, userID string, day, at time.Time, confidence float64) (Record, error)
	CompleteCheckOut(ctx context.Context, userID string, day, at time.Time) (bool, error)
	RecordFor(ctx context.Context, userID string, day time.Time) (*Record, error)
	CountActiveUsers(ctx context.Context) (int, error)
	CountRecords(ctx context.Context, day time.Time) (int, error)
	CountPresent(ctx context.Context, day time.Time) (int, error)
	RecentRecords(ctx context.Context, day time.Time, limit int) ([]RecordWithName, error)
}

// Repository persists attendance rows in Postgres.
type Repository struct {
	db *sql.DB
}

var _ Ledger = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertCheckIn creates the day's record or refreshes its check-in time and
// confidence. The ON CONFLICT clause makes the create-or-update atomic, so
// two concurrent check-ins for the same user and day cannot both insert; the
// loser's statement degrades to the update arm inside the database. An
// existing check_out_at is deliberately left untouched.
func (r *Repository) UpsertCheckIn(ctx context.Context, userID string, day, at time.Time, confidence float64) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, day, check_in_at, confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day) DO UPDATE
		SET check_in_at = EXCLUDED.check_in_at,
		    confidence  = EXCLUDED.confidence
		RETURNING id, user_id, day, check_in_at, check_out_at, confidence, created_at
	`, uuid.NewString(), userID, day, at, confidence)

	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Day, &rec.CheckInAt, &rec.CheckOutAt, &rec.Confidence, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// CompleteCheckOut sets the check-out time on the day's record if it is
// still open. Returns false without error when no record exists or the
// record is already checked out: first check-out wins, later calls are
// no-ops.
func (r *Repository) CompleteCheckOut(ctx context.Context, userID string, day, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_out_at = $3
		WHERE user_id = $1 AND day = $2 AND check_out_at IS NULL
	`, userID, day, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordFor returns the record for (user, day), or nil when none exists.
func (r *Repository) RecordFor(ctx context.Context, userID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, day, check_in_at, check_out_at, confidence, created_at
		FROM attendance_records
		WHERE user_id = $1 AND day = $2
	`, userID, day)

	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Day, &rec.CheckInAt, &rec.CheckOutAt, &rec.Confidence, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// CountActiveUsers counts enrolled users that have not been deactivated.
func (r *Repository) CountActiveUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE active`).Scan(&n)
	return n, err
}

// CountRecords counts attendance rows for the given day.
func (r *Repository) CountRecords(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE day = $1
	`, day).Scan(&n)
	return n, err
}

// CountPresent counts distinct users with any attendance row for the day.
func (r *Repository) CountPresent(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM attendance_records WHERE day = $1
	`, day).Scan(&n)
	return n, err
}

// RecentRecords returns the day's records ordered by check-in time
// descending, annotated with the user's display name.
func (r *Repository) RecentRecords(ctx context.Context, day time.Time, limit int) ([]RecordWithName, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.day, a.check_in_at, a.check_out_at, a.confidence, a.created_at, u.name
		FROM attendance_records a
		JOIN users u ON u.id = a.user_id
		WHERE a.day = $1
		ORDER BY a.check_in_at DESC
		LIMIT $2
	`, day, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RecordWithName
	for rows.Next() {
		var rec RecordWithName
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Day, &rec.CheckInAt, &rec.CheckOutAt, &rec.Confidence, &rec.CreatedAt, &rec.Name); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
