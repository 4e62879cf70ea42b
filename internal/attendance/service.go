package attendance

import (
	"context"
	"errors"
	"time"
)

// recentLimit caps the recent-activity view on the stats dashboard.
const recentLimit = 10

// Stats is a point-in-time view over the ledger, re-derived on every call.
type Stats struct {
	TotalUsers     int              `json:"total_users"`
	PresentToday   int              `json:"present_today"`
	CheckinsToday  int              `json:"checkins_today"`
	RecentCheckins []RecordWithName `json:"recent_checkins"`
}

// Service applies the per-day check-in/check-out rules on top of the ledger.
type Service struct {
	ledger Ledger
	now    func() time.Time
}

// NewService creates a service backed by a ledger.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger, now: time.Now}
}

// today is the current UTC calendar date at midnight.
func (s *Service) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckIn records a check-in for the user today. Repeated calls on the same
// day refresh the check-in time and confidence on the single existing row;
// they never create a second one.
func (s *Service) CheckIn(ctx context.Context, userID string, confidence float64) (Record, error) {
	if userID == "" {
		return Record{}, errors.New("user id required")
	}
	return s.ledger.UpsertCheckIn(ctx, userID, s.today(), s.now().UTC(), confidence)
}

// CheckOut closes today's record for the user. Returns false when there was
// nothing to close (no check-in today, or already checked out); that is a
// no-op, not an error.
func (s *Service) CheckOut(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("user id required")
	}
	return s.ledger.CompleteCheckOut(ctx, userID, s.today(), s.now().UTC())
}

// TodayRecord returns the user's record for today, or nil.
func (s *Service) TodayRecord(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	return s.ledger.RecordFor(ctx, userID, s.today())
}

// Stats derives the dashboard counters for today.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	day := s.today()

	total, err := s.ledger.CountActiveUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	present, err := s.ledger.CountPresent(ctx, day)
	if err != nil {
		return Stats{}, err
	}
	checkins, err := s.ledger.CountRecords(ctx, day)
	if err != nil {
		return Stats{}, err
	}
	recent, err := s.ledger.RecentRecords(ctx, day, recentLimit)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalUsers:     total,
		PresentToday:   present,
		CheckinsToday:  checkins,
		RecentCheckins: recent,
	}, nil
}
