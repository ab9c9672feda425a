package models

import (
	"time"

	"github.com/google/uuid"
)

// Print job statuses. Transitions are pending -> processing (claim only),
// processing -> done|failed (ack only). Done and failed are terminal.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// ValidJobStatus reports whether status is one of the known job states.
func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// PrintJob is one unit of printable work queued for a printer. The payload
// is an opaque document; the queue never interprets its contents. The
// (printer_id, external_id, type) triple is unique among non-failed jobs,
// which is what makes enqueue idempotent.
type PrintJob struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	TenantID   uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	PrinterID  uuid.UUID      `json:"printer_id" db:"printer_id"`
	ExternalID string         `json:"external_id" db:"external_id"`
	Type       string         `json:"type" db:"type"`
	Payload    map[string]any `json:"payload" db:"payload"`
	Status     string         `json:"status" db:"status"`
	Attempts   int            `json:"attempts" db:"attempts"`
	LastError  *string        `json:"last_error" db:"last_error"`
	Info       *string        `json:"info" db:"info"`
	PrintedAt  *time.Time     `json:"printed_at" db:"printed_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// PrintJobFilter holds the optional filters for job listing queries.
// Administrative callers may filter any printer of their tenant; agent
// callers are pinned to their own printer by the handler before the filter
// reaches the repository.
type PrintJobFilter struct {
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	PrinterID *uuid.UUID `json:"printer_id,omitempty"`
	Status    *string    `json:"status,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}
