package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"montisprint/internal/common"
	"montisprint/internal/models"
	"montisprint/internal/repositories"

	"github.com/google/uuid"
)

// Claim page-size bounds shared by agents and the HTTP surface.
const (
	DefaultClaimLimit = 10
	MaxClaimLimit     = 50
)

// EnqueueResult reports the job a creation request resolved to and whether
// it already existed under the same idempotency triple.
type EnqueueResult struct {
	JobID          uuid.UUID `json:"jobId"`
	AlreadyExisted bool      `json:"alreadyExisted"`
}

// PrintJobService is the durable at-least-once work queue between the
// backend and the printing agents.
type PrintJobService interface {
	Enqueue(ctx context.Context, tenantID, printerID uuid.UUID, externalID, jobType string, payload map[string]any) (*EnqueueResult, error)
	Claim(ctx context.Context, printerID uuid.UUID, limit int) ([]*models.PrintJob, error)
	List(ctx context.Context, filter *models.PrintJobFilter) ([]*models.PrintJob, error)
	Acknowledge(ctx context.Context, printerID, jobID uuid.UUID, status string, info, reason *string, printedAt *time.Time) (bool, error)
}

type printJobService struct {
	jobRepo     repositories.PrintJobRepository
	printerRepo repositories.PrinterRepository
}

// NewPrintJobService creates a new print job service instance
func NewPrintJobService(jobRepo repositories.PrintJobRepository, printerRepo repositories.PrinterRepository) PrintJobService {
	return &printJobService{jobRepo: jobRepo, printerRepo: printerRepo}
}

func (s *printJobService) Enqueue(ctx context.Context, tenantID, printerID uuid.UUID, externalID, jobType string, payload map[string]any) (*EnqueueResult, error) {
	// Ownership check keeps one tenant from queueing work on another
	// tenant's printer. Inactive printers reject new work as well.
	printer, err := s.printerRepo.GetByID(ctx, tenantID, printerID)
	if err != nil {
		log.Printf("Failed to look up printer %s/%s for enqueue: %v", tenantID, printerID, err)
		return nil, common.SecureErrorMessage("look up printer", err)
	}
	if printer == nil || !printer.Active {
		return nil, ErrPrinterNotFound
	}

	job := &models.PrintJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		PrinterID:  printerID,
		ExternalID: externalID,
		Type:       jobType,
		Payload:    payload,
	}

	jobID, alreadyExisted, err := s.jobRepo.Enqueue(ctx, job)
	if err != nil {
		log.Printf("Failed to enqueue job for printer %s: %v", printerID, err)
		return nil, common.SecureErrorMessage("enqueue print job", err)
	}
	return &EnqueueResult{JobID: jobID, AlreadyExisted: alreadyExisted}, nil
}

func (s *printJobService) Claim(ctx context.Context, printerID uuid.UUID, limit int) ([]*models.PrintJob, error) {
	limit = common.ClampLimit(limit, DefaultClaimLimit, MaxClaimLimit)

	jobs, err := s.jobRepo.ClaimPending(ctx, printerID, limit)
	if err != nil {
		log.Printf("Failed to claim jobs for printer %s: %v", printerID, err)
		return nil, common.SecureErrorMessage("claim print jobs", err)
	}
	return jobs, nil
}

func (s *printJobService) List(ctx context.Context, filter *models.PrintJobFilter) ([]*models.PrintJob, error) {
	if filter.Status != nil && !models.ValidJobStatus(*filter.Status) {
		return nil, fmt.Errorf("status must be one of: pending, processing, done, failed")
	}
	filter.Limit = common.ClampLimit(filter.Limit, 50, MaxClaimLimit)

	jobs, err := s.jobRepo.List(ctx, filter)
	if err != nil {
		log.Printf("Failed to list print jobs: %v", err)
		return nil, common.SecureErrorMessage("list print jobs", err)
	}
	return jobs, nil
}

func (s *printJobService) Acknowledge(ctx context.Context, printerID, jobID uuid.UUID, status string, info, reason *string, printedAt *time.Time) (bool, error) {
	if status != models.JobStatusDone && status != models.JobStatusFailed {
		return false, fmt.Errorf("status must be done or failed")
	}
	if status == models.JobStatusFailed && reason == nil {
		fallback := "failed"
		reason = &fallback
	}

	acked, err := s.jobRepo.Acknowledge(ctx, printerID, jobID, status, info, reason, printedAt)
	if err != nil {
		log.Printf("Failed to acknowledge job %s for printer %s: %v", jobID, printerID, err)
		return false, common.SecureErrorMessage("acknowledge print job", err)
	}
	return acked, nil
}
