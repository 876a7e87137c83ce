// Package jobs runs background work (acquisition, summarization) on a
// bounded worker pool with persistent job records.
package jobs

import (
	"fmt"
	"time"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown job status: %q", s)
}

// Job describes one unit of background work.
type Job struct {
	ID      string
	Kind    string
	Citekey string

	Status   Status
	Progress float64 // 0..1, non-decreasing
	Message  string
	Error    string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Update is a progress or state-change notification for subscribers.
type Update struct {
	JobID    string
	Status   Status
	Progress float64
	Message  string
	Error    string
}
