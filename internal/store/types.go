// Package store provides SQLite-backed persistence for settings, in-progress
// answers, session heartbeats and archived assessments.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a historical session id does not exist.
var ErrNotFound = errors.New("not found")

// Response is one archived rating.
type Response struct {
	QuestionID string
	Category   string
	Value      int
}

// HistoricalInput is what a submission archives.
type HistoricalInput struct {
	Score           float64
	Responses       []Response
	DurationSeconds int64
	Notes           string
	CompletedAt     time.Time // defaults to now when zero
}

// Summary is a historical session without its responses, for listing.
type Summary struct {
	ID              string
	CompletedAt     time.Time
	TotalScore      float64
	DurationSeconds int64
	Notes           string
	ResponseCount   int
}

// HistoricalSession is a complete archived assessment.
type HistoricalSession struct {
	Summary
	Responses []Response
}
