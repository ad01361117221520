package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal status of a trend run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// TrendRun is the audit row written for each orchestrator run.
// Corresponds to price_change_runs table in PostgreSQL.
type TrendRun struct {
	RunID           uuid.UUID
	Today           time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalItems      int
	ChunksAttempted int
	ChunksSkipped   int
	ItemsWritten    int
	Status          RunStatus
	Error           *string
}
