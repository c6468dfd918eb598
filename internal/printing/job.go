package printing

import (
	"fmt"
	"time"

	"github.com/warnain/backend/internal/users"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a print job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a stored or client-supplied status.
func ParseStatus(raw string) (Status, error) {
	switch status := Status(raw); status {
	case StatusPending, StatusPrinting, StatusCompleted, StatusFailed, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("invalid print job status %q", raw)
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ValidateTransition checks that a job may move from current to next.
// Rewriting the current status is always allowed.
func ValidateTransition(current, next Status) error {
	if current.Terminal() {
		if current == next {
			return nil
		}
		return fmt.Errorf("a %s job cannot transition to %s", current, next)
	}
	switch current {
	case StatusPending:
		return nil
	case StatusPrinting:
		if next == StatusPending {
			return fmt.Errorf("a printing job cannot return to pending")
		}
		return nil
	default:
		return fmt.Errorf("invalid status transition from %q", current)
	}
}

// Job is one attempt to print a file on behalf of a user.
type Job struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index" json:"-"`
	User         *users.User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PrinterName  string         `gorm:"size:255;not null" json:"printer_name"`
	FilePath     string         `gorm:"size:500;not null" json:"file_path"`
	Copies       int            `gorm:"not null" json:"copies"`
	Status       Status         `gorm:"size:50;not null;index" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message"`
	SpoolerJobID int            `json:"spooler_job_id,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created"`
	UpdatedAt    time.Time      `json:"modified"`
}

// TableName overrides the default gorm table name.
func (Job) TableName() string {
	return "print_jobs"
}

// Models lists the gorm models owned by this package.
func Models() []any {
	return []any{&Job{}}
}
