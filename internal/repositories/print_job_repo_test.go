package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"montisprint/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PrintJobRepoTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	repo      PrintJobRepository
	tenantID  uuid.UUID
	printerID uuid.UUID
	context   context.Context
}

func (suite *PrintJobRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewPrintJobRepo(mock)
	suite.tenantID = uuid.New()
	suite.printerID = uuid.New()
	suite.context = context.Background()
}

func (suite *PrintJobRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestPrintJobRepoTestSuite(t *testing.T) {
	suite.Run(t, new(PrintJobRepoTestSuite))
}

func (suite *PrintJobRepoTestSuite) newJob() *models.PrintJob {
	return &models.PrintJob{
		ID:         uuid.New(),
		TenantID:   suite.tenantID,
		PrinterID:  suite.printerID,
		ExternalID: "order-1042",
		Type:       "kitchen_ticket",
		Payload:    map[string]any{"lines": []any{"2x Tacos al pastor"}},
	}
}

func (suite *PrintJobRepoTestSuite) TestEnqueue_NewJob() {
	job := suite.newJob()

	suite.mock.ExpectQuery(`SELECT id\s+FROM print_jobs\s+WHERE printer_id = \$1 AND external_id = \$2 AND type = \$3 AND status <> 'failed'`).
		WithArgs(job.PrinterID, job.ExternalID, job.Type).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectExec(`INSERT INTO print_jobs`).
		WithArgs(job.ID, job.TenantID, job.PrinterID, job.ExternalID, job.Type, job.Payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	jobID, alreadyExisted, err := suite.repo.Enqueue(suite.context, job)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), alreadyExisted)
	assert.Equal(suite.T(), job.ID, jobID)
}

func (suite *PrintJobRepoTestSuite) TestEnqueue_ExistingTripleReturned() {
	job := suite.newJob()
	existingID := uuid.New()

	suite.mock.ExpectQuery(`SELECT id\s+FROM print_jobs\s+WHERE printer_id = \$1 AND external_id = \$2 AND type = \$3 AND status <> 'failed'`).
		WithArgs(job.PrinterID, job.ExternalID, job.Type).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existingID))

	jobID, alreadyExisted, err := suite.repo.Enqueue(suite.context, job)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), alreadyExisted)
	assert.Equal(suite.T(), existingID, jobID)
}

func (suite *PrintJobRepoTestSuite) TestEnqueue_LostInsertRace() {
	job := suite.newJob()
	winnerID := uuid.New()

	suite.mock.ExpectQuery(`SELECT id\s+FROM print_jobs\s+WHERE printer_id = \$1 AND external_id = \$2 AND type = \$3 AND status <> 'failed'`).
		WithArgs(job.PrinterID, job.ExternalID, job.Type).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectExec(`INSERT INTO print_jobs`).
		WithArgs(job.ID, job.TenantID, job.PrinterID, job.ExternalID, job.Type, job.Payload).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	suite.mock.ExpectQuery(`SELECT id\s+FROM print_jobs\s+WHERE printer_id = \$1 AND external_id = \$2 AND type = \$3 AND status <> 'failed'`).
		WithArgs(job.PrinterID, job.ExternalID, job.Type).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(winnerID))

	jobID, alreadyExisted, err := suite.repo.Enqueue(suite.context, job)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), alreadyExisted)
	assert.Equal(suite.T(), winnerID, jobID)
}

func (suite *PrintJobRepoTestSuite) TestEnqueue_DatabaseError() {
	job := suite.newJob()

	suite.mock.ExpectQuery(`SELECT id\s+FROM print_jobs`).
		WithArgs(job.PrinterID, job.ExternalID, job.Type).
		WillReturnError(errors.New("database connection failed"))

	_, _, err := suite.repo.Enqueue(suite.context, job)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "database connection failed")
}

func printJobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "printer_id", "external_id", "type", "payload",
		"status", "attempts", "last_error", "info", "printed_at", "created_at", "updated_at",
	})
}

func (suite *PrintJobRepoTestSuite) TestClaimPending_Success() {
	now := time.Now()
	jobID1 := uuid.New()
	jobID2 := uuid.New()

	rows := printJobRows().
		AddRow(jobID1, suite.tenantID, suite.printerID, "order-1", "kitchen_ticket", map[string]any{"k": "v"},
			"processing", 1, nil, nil, nil, now.Add(-2*time.Minute), now).
		AddRow(jobID2, suite.tenantID, suite.printerID, "order-2", "kitchen_ticket", map[string]any{"k": "v"},
			"processing", 1, nil, nil, nil, now.Add(-time.Minute), now)

	suite.mock.ExpectQuery(`WITH claimable AS \(\s+SELECT id\s+FROM print_jobs\s+WHERE printer_id = \$1 AND status = 'pending'\s+ORDER BY created_at ASC\s+FOR UPDATE SKIP LOCKED\s+LIMIT \$2\s+\)\s+UPDATE print_jobs`).
		WithArgs(suite.printerID, 10).
		WillReturnRows(rows)

	jobs, err := suite.repo.ClaimPending(suite.context, suite.printerID, 10)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), jobs, 2)
	assert.Equal(suite.T(), jobID1, jobs[0].ID)
	assert.Equal(suite.T(), "processing", jobs[0].Status)
	assert.Equal(suite.T(), 1, jobs[0].Attempts)
}

func (suite *PrintJobRepoTestSuite) TestClaimPending_EmptyQueue() {
	suite.mock.ExpectQuery(`WITH claimable AS`).
		WithArgs(suite.printerID, 10).
		WillReturnRows(printJobRows())

	jobs, err := suite.repo.ClaimPending(suite.context, suite.printerID, 10)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), jobs)
}

func (suite *PrintJobRepoTestSuite) TestList_AllFilters() {
	status := "pending"
	now := time.Now()
	rows := printJobRows().
		AddRow(uuid.New(), suite.tenantID, suite.printerID, "order-9", "receipt", map[string]any{},
			"pending", 0, nil, nil, nil, now, now)

	suite.mock.ExpectQuery(`SELECT .+ FROM print_jobs\s+WHERE 1 = 1\s+AND tenant_id = \$1 AND printer_id = \$2 AND status = \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(suite.tenantID, suite.printerID, status, 25).
		WillReturnRows(rows)

	jobs, err := suite.repo.List(suite.context, &models.PrintJobFilter{
		TenantID:  &suite.tenantID,
		PrinterID: &suite.printerID,
		Status:    &status,
		Limit:     25,
	})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), jobs, 1)
	assert.Equal(suite.T(), "pending", jobs[0].Status)
}

func (suite *PrintJobRepoTestSuite) TestList_DefaultLimit() {
	suite.mock.ExpectQuery(`SELECT .+ FROM print_jobs\s+WHERE 1 = 1\s+AND tenant_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(suite.tenantID, 50).
		WillReturnRows(printJobRows())

	jobs, err := suite.repo.List(suite.context, &models.PrintJobFilter{TenantID: &suite.tenantID})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), jobs)
}

func (suite *PrintJobRepoTestSuite) TestAcknowledge_Done() {
	jobID := uuid.New()
	info := "printed on second tray"

	suite.mock.ExpectExec(`UPDATE print_jobs\s+SET status = \$3`).
		WithArgs(suite.printerID, jobID, "done", &info, (*string)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	acked, err := suite.repo.Acknowledge(suite.context, suite.printerID, jobID, "done", &info, nil, nil)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), acked)
}

func (suite *PrintJobRepoTestSuite) TestAcknowledge_NotProcessing() {
	jobID := uuid.New()
	reason := "out of paper"

	suite.mock.ExpectExec(`UPDATE print_jobs\s+SET status = \$3`).
		WithArgs(suite.printerID, jobID, "failed", (*string)(nil), &reason, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	acked, err := suite.repo.Acknowledge(suite.context, suite.printerID, jobID, "failed", nil, &reason, nil)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), acked)
}

func (suite *PrintJobRepoTestSuite) TestReclaimStale_SplitsByAttempts() {
	cutoff := time.Now().Add(-5 * time.Minute)

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`UPDATE print_jobs\s+SET status = 'pending', updated_at = NOW\(\)\s+WHERE status = 'processing' AND updated_at < \$1 AND attempts < \$2`).
		WithArgs(cutoff, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	suite.mock.ExpectExec(`UPDATE print_jobs\s+SET status = 'failed', last_error = 'claim expired', updated_at = NOW\(\)\s+WHERE status = 'processing' AND updated_at < \$1 AND attempts >= \$2`).
		WithArgs(cutoff, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	reclaimed, expired, err := suite.repo.ReclaimStale(suite.context, cutoff, 5)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), reclaimed)
	assert.Equal(suite.T(), int64(1), expired)
}

func (suite *PrintJobRepoTestSuite) TestReclaimStale_RollbackOnError() {
	cutoff := time.Now().Add(-5 * time.Minute)

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`UPDATE print_jobs\s+SET status = 'pending'`).
		WithArgs(cutoff, 5).
		WillReturnError(errors.New("deadlock detected"))
	suite.mock.ExpectRollback()

	_, _, err := suite.repo.ReclaimStale(suite.context, cutoff, 5)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "deadlock detected")
}
