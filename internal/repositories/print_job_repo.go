package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"montisprint/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PrintJobRepository interface {
	Enqueue(ctx context.Context, job *models.PrintJob) (uuid.UUID, bool, error)
	ClaimPending(ctx context.Context, printerID uuid.UUID, limit int) ([]*models.PrintJob, error)
	List(ctx context.Context, filter *models.PrintJobFilter) ([]*models.PrintJob, error)
	Acknowledge(ctx context.Context, printerID, jobID uuid.UUID, status string, info, reason *string, printedAt *time.Time) (bool, error)
	ReclaimStale(ctx context.Context, claimedBefore time.Time, maxAttempts int) (reclaimed, expired int64, err error)
}

type printJobRepo struct {
	db Database
}

func NewPrintJobRepo(db Database) PrintJobRepository {
	return &printJobRepo{db: db}
}

const printJobColumns = `id, tenant_id, printer_id, external_id, type, payload, status, attempts, last_error, info, printed_at, created_at, updated_at`

func scanPrintJob(row pgx.Row) (*models.PrintJob, error) {
	job := &models.PrintJob{}
	err := row.Scan(
		&job.ID, &job.TenantID, &job.PrinterID, &job.ExternalID, &job.Type, &job.Payload,
		&job.Status, &job.Attempts, &job.LastError, &job.Info, &job.PrintedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Enqueue inserts a job unless an equivalent non-failed job already exists
// for the (printer, external_id, type) idempotency triple. Callers retrying
// after network uncertainty get the existing job id back instead of a
// duplicate print-out. The partial unique index on the triple closes the
// race between two concurrent first-time enqueues; a failed job does not
// block a fresh row under the same correlation id.
func (r *printJobRepo) Enqueue(ctx context.Context, job *models.PrintJob) (uuid.UUID, bool, error) {
	existingQuery := `
		SELECT id
		FROM print_jobs
		WHERE printer_id = $1 AND external_id = $2 AND type = $3 AND status <> 'failed'
	`
	var existingID uuid.UUID
	err := r.db.QueryRow(ctx, existingQuery, job.PrinterID, job.ExternalID, job.Type).Scan(&existingID)
	if err == nil {
		return existingID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	insertQuery := `
		INSERT INTO print_jobs (id, tenant_id, printer_id, external_id, type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, insertQuery, job.ID, job.TenantID, job.PrinterID, job.ExternalID, job.Type, job.Payload)
	if uniqueViolation(err) {
		// Lost the race against a concurrent enqueue of the same triple.
		err = r.db.QueryRow(ctx, existingQuery, job.PrinterID, job.ExternalID, job.Type).Scan(&existingID)
		if err != nil {
			return uuid.Nil, false, err
		}
		return existingID, true, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return job.ID, false, nil
}

// ClaimPending atomically moves up to limit pending jobs of a printer to
// processing, oldest first, incrementing the attempt counter. FOR UPDATE
// SKIP LOCKED makes concurrent pollers for the same printer take disjoint
// job sets without blocking each other.
func (r *printJobRepo) ClaimPending(ctx context.Context, printerID uuid.UUID, limit int) ([]*models.PrintJob, error) {
	query := `
		WITH claimable AS (
			SELECT id
			FROM print_jobs
			WHERE printer_id = $1 AND status = 'pending'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		UPDATE print_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (SELECT id FROM claimable)
		RETURNING ` + printJobColumns

	rows, err := r.db.Query(ctx, query, printerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *printJobRepo) List(ctx context.Context, filter *models.PrintJobFilter) ([]*models.PrintJob, error) {
	queryBase := `
		SELECT ` + printJobColumns + `
		FROM print_jobs
		WHERE 1 = 1
	`
	args := []any{}
	conditionCount := 0

	if filter.TenantID != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND tenant_id = $%d`, conditionCount)
		args = append(args, *filter.TenantID)
	}
	if filter.PrinterID != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND printer_id = $%d`, conditionCount)
		args = append(args, *filter.PrinterID)
	}
	if filter.Status != nil {
		conditionCount++
		queryBase += fmt.Sprintf(` AND status = $%d`, conditionCount)
		args = append(args, *filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	conditionCount++
	queryBase += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, conditionCount)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Acknowledge closes out a claimed job. The update is scoped by printer and
// restricted to processing jobs, so an agent can neither ack another
// printer's job nor flip a terminal job back. A zero row count is a benign
// not-found, not an error.
func (r *printJobRepo) Acknowledge(ctx context.Context, printerID, jobID uuid.UUID, status string, info, reason *string, printedAt *time.Time) (bool, error) {
	query := `
		UPDATE print_jobs
		SET status = $3,
		    info = $4,
		    last_error = CASE WHEN $3 = 'failed' THEN $5 ELSE NULL END,
		    printed_at = CASE WHEN $3 = 'done' THEN COALESCE($6, NOW()) ELSE NULL END,
		    updated_at = NOW()
		WHERE printer_id = $1 AND id = $2 AND status = 'processing'
	`
	tag, err := r.db.Exec(ctx, query, printerID, jobID, status, info, reason, printedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReclaimStale handles jobs claimed but never acknowledged: ones below the
// attempt ceiling go back to pending for another claim, the rest are failed
// with a claim-expired error. Both sweeps run in one transaction.
func (r *printJobRepo) ReclaimStale(ctx context.Context, claimedBefore time.Time, maxAttempts int) (reclaimed, expired int64, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	reclaimQuery := `
		UPDATE print_jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1 AND attempts < $2
	`
	tag, err := tx.Exec(ctx, reclaimQuery, claimedBefore, maxAttempts)
	if err != nil {
		return 0, 0, err
	}
	reclaimed = tag.RowsAffected()

	expireQuery := `
		UPDATE print_jobs
		SET status = 'failed', last_error = 'claim expired', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1 AND attempts >= $2
	`
	tag, err = tx.Exec(ctx, expireQuery, claimedBefore, maxAttempts)
	if err != nil {
		return 0, 0, err
	}
	expired = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return reclaimed, expired, nil
}
