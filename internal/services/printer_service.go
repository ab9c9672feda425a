package services

import (
	"context"
	"log"
	"strings"
	"time"

	"montisprint/internal/common"
	"montisprint/internal/models"
	"montisprint/internal/repositories"
	"montisprint/internal/secrets"

	"github.com/google/uuid"
)

// RegisteredPrinter is the one-time registration result. The API key is the
// only copy of the plaintext secret that will ever exist.
type RegisteredPrinter struct {
	PrinterID uuid.UUID `json:"printerId"`
	APIKey    string    `json:"apiKey"`
}

// PrinterService owns printer identity and configuration.
type PrinterService interface {
	Register(ctx context.Context, tenantID uuid.UUID, name string, meta map[string]any, isDefault bool) (*RegisteredPrinter, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*models.PrinterSummary, error)
	UpdateConfig(ctx context.Context, tenantID, printerID uuid.UUID, config map[string]any) (bool, error)
	Delete(ctx context.Context, tenantID, printerID uuid.UUID) (bool, error)
	ResolveDefault(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error)
}

type printerService struct {
	printerRepo repositories.PrinterRepository
}

// NewPrinterService creates a new printer service instance
func NewPrinterService(printerRepo repositories.PrinterRepository) PrinterService {
	return &printerService{printerRepo: printerRepo}
}

func (s *printerService) Register(ctx context.Context, tenantID uuid.UUID, name string, meta map[string]any, isDefault bool) (*RegisteredPrinter, error) {
	apiKey := secrets.GenerateAPIKey()

	printer := &models.Printer{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       strings.TrimSpace(name),
		APIKeyHash: secrets.HashSecret(apiKey),
		Meta:       meta,
		IsDefault:  isDefault,
		Active:     true,
	}

	if err := s.printerRepo.Create(ctx, printer); err != nil {
		log.Printf("Failed to register printer for tenant %s: %v", tenantID, err)
		return nil, common.SecureErrorMessage("register printer", err)
	}

	return &RegisteredPrinter{PrinterID: printer.ID, APIKey: apiKey}, nil
}

func (s *printerService) List(ctx context.Context, tenantID uuid.UUID) ([]*models.PrinterSummary, error) {
	printers, err := s.printerRepo.List(ctx, tenantID)
	if err != nil {
		log.Printf("Failed to list printers for tenant %s: %v", tenantID, err)
		return nil, common.SecureErrorMessage("list printers", err)
	}

	now := time.Now()
	summaries := make([]*models.PrinterSummary, 0, len(printers))
	for _, printer := range printers {
		summaries = append(summaries, printer.Summary(now))
	}
	return summaries, nil
}

func (s *printerService) UpdateConfig(ctx context.Context, tenantID, printerID uuid.UUID, config map[string]any) (bool, error) {
	updated, err := s.printerRepo.UpdateConfig(ctx, tenantID, printerID, config)
	if err != nil {
		log.Printf("Failed to update printer config %s/%s: %v", tenantID, printerID, err)
		return false, common.SecureErrorMessage("update printer config", err)
	}
	return updated, nil
}

func (s *printerService) Delete(ctx context.Context, tenantID, printerID uuid.UUID) (bool, error) {
	deleted, err := s.printerRepo.Delete(ctx, tenantID, printerID)
	if err != nil {
		log.Printf("Failed to delete printer %s/%s: %v", tenantID, printerID, err)
		return false, common.SecureErrorMessage("delete printer", err)
	}
	return deleted, nil
}

func (s *printerService) ResolveDefault(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error) {
	id, found, err := s.printerRepo.ResolveDefault(ctx, tenantID)
	if err != nil {
		log.Printf("Failed to resolve default printer for tenant %s: %v", tenantID, err)
		return uuid.Nil, false, common.SecureErrorMessage("resolve default printer", err)
	}
	return id, found, nil
}
