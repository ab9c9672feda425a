package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"montisprint/internal/models"
	"montisprint/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockPrintJobRepository struct {
	mock.Mock
}

func (m *MockPrintJobRepository) Enqueue(ctx context.Context, job *models.PrintJob) (uuid.UUID, bool, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockPrintJobRepository) ClaimPending(ctx context.Context, printerID uuid.UUID, limit int) ([]*models.PrintJob, error) {
	args := m.Called(ctx, printerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PrintJob), args.Error(1)
}

func (m *MockPrintJobRepository) List(ctx context.Context, filter *models.PrintJobFilter) ([]*models.PrintJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PrintJob), args.Error(1)
}

func (m *MockPrintJobRepository) Acknowledge(ctx context.Context, printerID, jobID uuid.UUID, status string, info, reason *string, printedAt *time.Time) (bool, error) {
	args := m.Called(ctx, printerID, jobID, status, info, reason, printedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockPrintJobRepository) ReclaimStale(ctx context.Context, claimedBefore time.Time, maxAttempts int) (int64, int64, error) {
	args := m.Called(ctx, claimedBefore, maxAttempts)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

type MockPrinterRepository struct {
	mock.Mock
}

func (m *MockPrinterRepository) Create(ctx context.Context, printer *models.Printer) error {
	args := m.Called(ctx, printer)
	return args.Error(0)
}

func (m *MockPrinterRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Printer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Printer), args.Error(1)
}

func (m *MockPrinterRepository) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Printer, error) {
	args := m.Called(ctx, apiKeyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Printer), args.Error(1)
}

func (m *MockPrinterRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Printer, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Printer), args.Error(1)
}

func (m *MockPrinterRepository) UpdateConfig(ctx context.Context, tenantID, id uuid.UUID, config map[string]any) (bool, error) {
	args := m.Called(ctx, tenantID, id, config)
	return args.Bool(0), args.Error(1)
}

func (m *MockPrinterRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockPrinterRepository) ResolveDefault(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockPrinterRepository) Heartbeat(ctx context.Context, tenantID, id uuid.UUID, meta map[string]any) error {
	args := m.Called(ctx, tenantID, id, meta)
	return args.Error(0)
}

var _ repositories.PrintJobRepository = (*MockPrintJobRepository)(nil)
var _ repositories.PrinterRepository = (*MockPrinterRepository)(nil)

type PrintJobServiceTestSuite struct {
	suite.Suite
	mockJobRepo     *MockPrintJobRepository
	mockPrinterRepo *MockPrinterRepository
	service         PrintJobService
	tenantID        uuid.UUID
	printerID       uuid.UUID
}

func (suite *PrintJobServiceTestSuite) SetupTest() {
	suite.mockJobRepo = &MockPrintJobRepository{}
	suite.mockPrinterRepo = &MockPrinterRepository{}
	suite.service = NewPrintJobService(suite.mockJobRepo, suite.mockPrinterRepo)
	suite.tenantID = uuid.New()
	suite.printerID = uuid.New()

	suite.mockJobRepo.Test(suite.T())
	suite.mockPrinterRepo.Test(suite.T())
}

func (suite *PrintJobServiceTestSuite) TearDownTest() {
	suite.mockJobRepo.AssertExpectations(suite.T())
	suite.mockPrinterRepo.AssertExpectations(suite.T())
}

func TestPrintJobServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PrintJobServiceTestSuite))
}

func (suite *PrintJobServiceTestSuite) activePrinter() *models.Printer {
	return &models.Printer{
		ID:       suite.printerID,
		TenantID: suite.tenantID,
		Name:     "Cocina Principal",
		Active:   true,
	}
}

func (suite *PrintJobServiceTestSuite) TestEnqueue_Success() {
	ctx := context.Background()
	payload := map[string]any{"lines": []any{"1x Quesadilla"}}

	suite.mockPrinterRepo.On("GetByID", ctx, suite.tenantID, suite.printerID).Return(suite.activePrinter(), nil)
	suite.mockJobRepo.On("Enqueue", ctx, mock.AnythingOfType("*models.PrintJob")).
		Return(uuid.New(), false, nil).
		Run(func(args mock.Arguments) {
			job := args.Get(1).(*models.PrintJob)
			assert.Equal(suite.T(), suite.tenantID, job.TenantID)
			assert.Equal(suite.T(), suite.printerID, job.PrinterID)
			assert.Equal(suite.T(), "order-7", job.ExternalID)
			assert.Equal(suite.T(), "kitchen_ticket", job.Type)
			assert.NotEqual(suite.T(), uuid.Nil, job.ID)
		})

	result, err := suite.service.Enqueue(ctx, suite.tenantID, suite.printerID, "order-7", "kitchen_ticket", payload)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), result)
	assert.False(suite.T(), result.AlreadyExisted)
}

func (suite *PrintJobServiceTestSuite) TestEnqueue_IdempotentReplay() {
	ctx := context.Background()
	existingID := uuid.New()

	suite.mockPrinterRepo.On("GetByID", ctx, suite.tenantID, suite.printerID).Return(suite.activePrinter(), nil)
	suite.mockJobRepo.On("Enqueue", ctx, mock.AnythingOfType("*models.PrintJob")).Return(existingID, true, nil)

	result, err := suite.service.Enqueue(ctx, suite.tenantID, suite.printerID, "order-7", "kitchen_ticket", nil)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), result.AlreadyExisted)
	assert.Equal(suite.T(), existingID, result.JobID)
}

func (suite *PrintJobServiceTestSuite) TestEnqueue_UnknownPrinter() {
	ctx := context.Background()

	suite.mockPrinterRepo.On("GetByID", ctx, suite.tenantID, suite.printerID).Return((*models.Printer)(nil), nil)

	result, err := suite.service.Enqueue(ctx, suite.tenantID, suite.printerID, "order-7", "kitchen_ticket", nil)
	assert.ErrorIs(suite.T(), err, ErrPrinterNotFound)
	assert.Nil(suite.T(), result)
}

func (suite *PrintJobServiceTestSuite) TestEnqueue_InactivePrinter() {
	ctx := context.Background()
	printer := suite.activePrinter()
	printer.Active = false

	suite.mockPrinterRepo.On("GetByID", ctx, suite.tenantID, suite.printerID).Return(printer, nil)

	result, err := suite.service.Enqueue(ctx, suite.tenantID, suite.printerID, "order-7", "kitchen_ticket", nil)
	assert.ErrorIs(suite.T(), err, ErrPrinterNotFound)
	assert.Nil(suite.T(), result)
}

func (suite *PrintJobServiceTestSuite) TestEnqueue_RepositoryErrorIsMasked() {
	ctx := context.Background()

	suite.mockPrinterRepo.On("GetByID", ctx, suite.tenantID, suite.printerID).Return(suite.activePrinter(), nil)
	suite.mockJobRepo.On("Enqueue", ctx, mock.AnythingOfType("*models.PrintJob")).
		Return(uuid.Nil, false, errors.New("pq: relation does not exist"))

	result, err := suite.service.Enqueue(ctx, suite.tenantID, suite.printerID, "order-7", "kitchen_ticket", nil)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.NotContains(suite.T(), err.Error(), "relation")
}

func (suite *PrintJobServiceTestSuite) TestClaim_DefaultLimit() {
	ctx := context.Background()

	suite.mockJobRepo.On("ClaimPending", ctx, suite.printerID, DefaultClaimLimit).Return([]*models.PrintJob{}, nil)

	jobs, err := suite.service.Claim(ctx, suite.printerID, 0)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), jobs)
}

func (suite *PrintJobServiceTestSuite) TestClaim_LimitClampedToMax() {
	ctx := context.Background()

	suite.mockJobRepo.On("ClaimPending", ctx, suite.printerID, MaxClaimLimit).Return([]*models.PrintJob{}, nil)

	jobs, err := suite.service.Claim(ctx, suite.printerID, 500)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), jobs)
}

func (suite *PrintJobServiceTestSuite) TestList_RejectsUnknownStatus() {
	ctx := context.Background()
	status := "archived"

	jobs, err := suite.service.List(ctx, &models.PrintJobFilter{Status: &status})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), jobs)
	assert.Contains(suite.T(), err.Error(), "status must be one of")
}

func (suite *PrintJobServiceTestSuite) TestList_Success() {
	ctx := context.Background()
	status := "pending"
	expected := []*models.PrintJob{{ID: uuid.New(), Status: "pending"}}

	suite.mockJobRepo.On("List", ctx, mock.AnythingOfType("*models.PrintJobFilter")).
		Return(expected, nil).
		Run(func(args mock.Arguments) {
			filter := args.Get(1).(*models.PrintJobFilter)
			assert.Equal(suite.T(), 50, filter.Limit)
		})

	jobs, err := suite.service.List(ctx, &models.PrintJobFilter{TenantID: &suite.tenantID, Status: &status})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), expected, jobs)
}

func (suite *PrintJobServiceTestSuite) TestAcknowledge_RejectsNonTerminalStatus() {
	ctx := context.Background()

	acked, err := suite.service.Acknowledge(ctx, suite.printerID, uuid.New(), "processing", nil, nil, nil)
	assert.Error(suite.T(), err)
	assert.False(suite.T(), acked)
	assert.Contains(suite.T(), err.Error(), "done or failed")
}

func (suite *PrintJobServiceTestSuite) TestAcknowledge_FailedDefaultsReason() {
	ctx := context.Background()
	jobID := uuid.New()

	suite.mockJobRepo.On("Acknowledge", ctx, suite.printerID, jobID, "failed",
		(*string)(nil), mock.AnythingOfType("*string"), (*time.Time)(nil)).
		Return(true, nil).
		Run(func(args mock.Arguments) {
			reason := args.Get(5).(*string)
			assert.Equal(suite.T(), "failed", *reason)
		})

	acked, err := suite.service.Acknowledge(ctx, suite.printerID, jobID, "failed", nil, nil, nil)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), acked)
}

func (suite *PrintJobServiceTestSuite) TestAcknowledge_Done() {
	ctx := context.Background()
	jobID := uuid.New()
	printedAt := time.Now().Add(-time.Second)

	suite.mockJobRepo.On("Acknowledge", ctx, suite.printerID, jobID, "done",
		(*string)(nil), (*string)(nil), &printedAt).
		Return(true, nil)

	acked, err := suite.service.Acknowledge(ctx, suite.printerID, jobID, "done", nil, nil, &printedAt)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), acked)
}

func (suite *PrintJobServiceTestSuite) TestAcknowledge_NotFoundOrTerminal() {
	ctx := context.Background()
	jobID := uuid.New()

	suite.mockJobRepo.On("Acknowledge", ctx, suite.printerID, jobID, "done",
		(*string)(nil), (*string)(nil), (*time.Time)(nil)).
		Return(false, nil)

	acked, err := suite.service.Acknowledge(ctx, suite.printerID, jobID, "done", nil, nil, nil)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), acked)
}
