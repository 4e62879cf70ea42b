// Package matcher resolves a probe face encoding to an enrolled user by
// nearest-neighbor search over Euclidean distance.
package matcher

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTolerance is the maximum distance for a positive match.
const DefaultTolerance = 0.6

var (
	// ErrNoEnrolledUsers means the candidate set was empty.
	ErrNoEnrolledUsers = errors.New("no enrolled users to match against")
	// ErrInvalidEncoding means the probe or a candidate encoding is malformed.
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// Candidate pairs an enrolled user with their primary encoding.
type Candidate struct {
	UserID   string
	Encoding []float32
}

// Result is the outcome of a match attempt. A negative result
// (Matched=false) still carries the best distance for diagnostics.
type Result struct {
	Matched    bool
	UserID     string
	Distance   float64
	Confidence float64
}

// Match finds the candidate closest to probe. The minimum distance wins;
// ties break to the lowest user ID so results are reproducible. If the
// minimum distance exceeds tolerance the result is negative, not an error.
// Dimensionality is verified before any distance is computed.
func Match(probe []float32, candidates []Candidate, tolerance float64) (Result, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if len(candidates) == 0 {
		return Result{}, ErrNoEnrolledUsers
	}
	if len(probe) == 0 {
		return Result{}, fmt.Errorf("%w: empty probe vector", ErrInvalidEncoding)
	}
	for _, c := range candidates {
		if len(c.Encoding) != len(probe) {
			return Result{}, fmt.Errorf("%w: probe has %d dimensions, user %s has %d",
				ErrInvalidEncoding, len(probe), c.UserID, len(c.Encoding))
		}
	}

	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		d := EuclideanDistance(probe, c.Encoding)
		if best < 0 || d < bestDist || (d == bestDist && c.UserID < candidates[best].UserID) {
			best = i
			bestDist = d
		}
	}

	res := Result{
		Distance:   bestDist,
		Confidence: Confidence(bestDist, tolerance),
	}
	if bestDist > tolerance {
		return res, nil
	}
	res.Matched = true
	res.UserID = candidates[best].UserID
	return res, nil
}

// EuclideanDistance computes the L2 distance between two vectors of
// equal length. Accumulation happens in float64 to limit rounding error.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance to a percentage in [0, 100]: 100 at zero
// distance, 0 at the tolerance boundary, linear in between.
func Confidence(distance, tolerance float64) float64 {
	if tolerance <= 0 {
		return 0
	}
	c := 1 - distance/tolerance
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c * 100
}
