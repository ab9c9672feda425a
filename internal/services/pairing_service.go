package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"montisprint/internal/common"
	"montisprint/internal/models"
	"montisprint/internal/repositories"
	"montisprint/internal/secrets"

	"github.com/google/uuid"
)

// IssuedToken is the issuance result. The activation code exists in
// plaintext only here; storage keeps its hash.
type IssuedToken struct {
	ActivationCode string    `json:"activationCode"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// PairPrinterInput is an agent's redemption request.
type PairPrinterInput struct {
	ActivationCode string
	Fingerprint    string
	Hostname       *string
	OSName         *string
	PrinterName    *string
}

// PairedPrinter is the redemption result handed back to the agent.
type PairedPrinter struct {
	PrinterID uuid.UUID `json:"printerId"`
	APIKey    string    `json:"apiKey"`
	Paired    bool      `json:"paired"`
}

// PairingService issues single-use activation codes and redeems them into
// printer credentials.
type PairingService interface {
	IssueToken(ctx context.Context, tenantID uuid.UUID, createdBy *uuid.UUID, alias *string, ttlMinutes int) (*IssuedToken, error)
	Redeem(ctx context.Context, input *PairPrinterInput) (*PairedPrinter, error)
}

type pairingService struct {
	tokenRepo repositories.PairingTokenRepository
}

// NewPairingService creates a new pairing service instance
func NewPairingService(tokenRepo repositories.PairingTokenRepository) PairingService {
	return &pairingService{tokenRepo: tokenRepo}
}

func (s *pairingService) IssueToken(ctx context.Context, tenantID uuid.UUID, createdBy *uuid.UUID, alias *string, ttlMinutes int) (*IssuedToken, error) {
	// TTL is clamped server-side regardless of what the caller asked for.
	ttl := models.ClampPairingTTL(ttlMinutes)
	activationCode := secrets.GeneratePairingCode()
	expiresAt := time.Now().Add(ttl)

	var trimmedAlias *string
	if alias != nil {
		if v := strings.TrimSpace(*alias); v != "" {
			trimmedAlias = &v
		}
	}

	token := &models.PairingToken{
		ID:              uuid.New(),
		TenantID:        tenantID,
		TokenHash:       secrets.HashPairingCode(activationCode),
		Alias:           trimmedAlias,
		ExpiresAt:       expiresAt,
		CreatedByUserID: createdBy,
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		log.Printf("Failed to issue pairing token for tenant %s: %v", tenantID, err)
		return nil, common.SecureErrorMessage("issue pairing token", err)
	}

	return &IssuedToken{ActivationCode: activationCode, ExpiresAt: expiresAt}, nil
}

func (s *pairingService) Redeem(ctx context.Context, input *PairPrinterInput) (*PairedPrinter, error) {
	fingerprint := strings.TrimSpace(input.Fingerprint)
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint is required")
	}

	apiKey := secrets.GenerateAPIKey()

	result, err := s.tokenRepo.Redeem(ctx, &repositories.RedeemTokenInput{
		TokenHash:     secrets.HashPairingCode(input.ActivationCode),
		Fingerprint:   fingerprint,
		Hostname:      trimmed(input.Hostname),
		OSName:        trimmed(input.OSName),
		SuggestedName: trimmed(input.PrinterName),
		APIKeyHash:    secrets.HashSecret(apiKey),
		NewPrinterID:  uuid.New(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenAlreadyUsed), errors.Is(err, ErrTokenExpired):
			return nil, err
		default:
			log.Printf("Failed to redeem pairing token: %v", err)
			return nil, common.SecureErrorMessage("redeem pairing token", err)
		}
	}

	return &PairedPrinter{PrinterID: result.PrinterID, APIKey: apiKey, Paired: true}, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
