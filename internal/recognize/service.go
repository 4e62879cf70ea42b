// Package recognize wires the recognition pipeline: probe encoding from the
// embedding provider, nearest-neighbor match against enrolled users, and the
// resulting attendance transition.
package recognize

import (
	"context"
	"errors"

	"faceattend/internal/attendance"
	"faceattend/internal/embedder"
	"faceattend/internal/matcher"
	"faceattend/internal/metrics"
	"faceattend/internal/registry"
)

// Actions a kiosk can request alongside a probe image.
const (
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
)

// ErrUnknownAction is returned for actions other than check_in/check_out.
var ErrUnknownAction = errors.New("unknown action")

// SampleMessageType tags queue messages carrying a SamplePayload.
const SampleMessageType = "sample"

// SamplePayload is the queue message body for asynchronous sample capture:
// the probe encoding of a successful recognition, stored later as
// auxiliary evidence for the matched user. DeviceID names the kiosk that
// captured the probe.
type SamplePayload struct {
	UserID   string    `json:"user_id"`
	DeviceID string    `json:"device_id,omitempty"`
	Encoding []float32 `json:"encoding"`
}

// EncodingSource lists the enrolled encodings the matcher runs against.
type EncodingSource interface {
	ListActiveEncodings(ctx context.Context) ([]registry.Enrollment, error)
}

// Outcome is the result of a recognition attempt. When Matched is false
// the distance and confidence still describe the best candidate found.
type Outcome struct {
	Matched    bool               `json:"matched"`
	UserID     string             `json:"user_id,omitempty"`
	Name       string             `json:"name,omitempty"`
	Distance   float64            `json:"distance"`
	Confidence float64            `json:"confidence"`
	Action     string             `json:"action"`
	CheckedOut bool               `json:"checked_out,omitempty"`
	Record     *attendance.Record `json:"record,omitempty"`
	Encoding   []float32          `json:"-"`
}

// Service runs recognitions end to end.
type Service struct {
	encoder   embedder.Encoder
	source    EncodingSource
	ledger    *attendance.Service
	tolerance float64
}

// NewService creates the recognition service. tolerance <= 0 falls back
// to the matcher default.
func NewService(encoder embedder.Encoder, source EncodingSource, ledger *attendance.Service, tolerance float64) *Service {
	if tolerance <= 0 {
		tolerance = matcher.DefaultTolerance
	}
	return &Service{encoder: encoder, source: source, ledger: ledger, tolerance: tolerance}
}

// Recognize resolves the probe image to a user and applies the requested
// attendance transition. A face that matches nobody is a negative outcome,
// not an error. The probe encoding rides along in the outcome so the
// caller can queue it as an auxiliary sample.
func (s *Service) Recognize(ctx context.Context, image, action string) (Outcome, error) {
	if action != ActionCheckIn && action != ActionCheckOut {
		return Outcome{}, ErrUnknownAction
	}

	probe, err := s.encoder.Encode(ctx, image)
	if err != nil {
		metrics.Recognitions.WithLabelValues("error").Inc()
		return Outcome{}, err
	}

	enrolled, err := s.source.ListActiveEncodings(ctx)
	if err != nil {
		metrics.Recognitions.WithLabelValues("error").Inc()
		return Outcome{}, err
	}

	candidates := make([]matcher.Candidate, len(enrolled))
	names := make(map[string]string, len(enrolled))
	for i, e := range enrolled {
		candidates[i] = matcher.Candidate{UserID: e.UserID, Encoding: e.Encoding}
		names[e.UserID] = e.Name
	}

	res, err := matcher.Match(probe, candidates, s.tolerance)
	if err != nil {
		metrics.Recognitions.WithLabelValues("error").Inc()
		return Outcome{}, err
	}
	metrics.MatchDistance.Observe(res.Distance)

	out := Outcome{
		Matched:    res.Matched,
		Distance:   res.Distance,
		Confidence: res.Confidence,
		Action:     action,
		Encoding:   probe,
	}
	if !res.Matched {
		metrics.Recognitions.WithLabelValues("no_match").Inc()
		return out, nil
	}

	out.UserID = res.UserID
	out.Name = names[res.UserID]
	metrics.Recognitions.WithLabelValues("matched").Inc()

	switch action {
	case ActionCheckIn:
		rec, err := s.ledger.CheckIn(ctx, res.UserID, res.Confidence)
		if err != nil {
			return Outcome{}, err
		}
		out.Record = &rec
		metrics.CheckIns.Inc()
	case ActionCheckOut:
		done, err := s.ledger.CheckOut(ctx, res.UserID)
		if err != nil {
			return Outcome{}, err
		}
		out.CheckedOut = done
		if done {
			metrics.CheckOuts.Inc()
		}
		rec, err := s.ledger.TodayRecord(ctx, res.UserID)
		if err != nil {
			return Outcome{}, err
		}
		out.Record = rec
	}
	return out, nil
}
