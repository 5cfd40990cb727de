package domain

import (
	"time"

	"github.com/google/uuid"
)

// Import job statuses. A job only ever moves forward:
// in_progress -> complete.
const (
	ImportStatusInProgress = "in_progress"
	ImportStatusComplete   = "complete"
)

// ImportJob tracks one product import run. The error/warning counts
// and the log text are written exactly once, when the run finishes.
type ImportJob struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	FileName    string     `json:"file_name" db:"file_name"`
	Errors      int        `json:"errors" db:"errors"`
	Warnings    int        `json:"warnings" db:"warnings"`
	Log         string     `json:"log" db:"log"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
