package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded prompt run.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Mode       string
	Model      string
	Message    string
	Examples   int
	Transcript string // JSON array of each chat call's message list
	Answer     string
	Status     string // "completed", "failed"
	Error      string
	DurationMS int64
	Calls      int
}
