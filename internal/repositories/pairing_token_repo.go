package repositories

import (
	"context"
	"errors"
	"time"

	"montisprint/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RedeemTokenInput carries everything a single redemption transaction
// needs. NewPrinterID is used only when no printer exists yet for the
// tenant and fingerprint; the caller generates it so the repository stays
// deterministic.
type RedeemTokenInput struct {
	TokenHash     string
	Fingerprint   string
	Hostname      *string
	OSName        *string
	SuggestedName *string
	APIKeyHash    string
	NewPrinterID  uuid.UUID
}

// RedeemTokenResult reports which printer the token resolved to and whether
// that printer was created by this redemption or reused by fingerprint.
type RedeemTokenResult struct {
	PrinterID uuid.UUID
	Created   bool
}

type PairingTokenRepository interface {
	Create(ctx context.Context, token *models.PairingToken) error
	Redeem(ctx context.Context, input *RedeemTokenInput) (*RedeemTokenResult, error)
	Prune(ctx context.Context, expiredBefore time.Time) (int64, error)
}

type pairingTokenRepo struct {
	db Database
}

func NewPairingTokenRepo(db Database) PairingTokenRepository {
	return &pairingTokenRepo{db: db}
}

func (r *pairingTokenRepo) Create(ctx context.Context, token *models.PairingToken) error {
	query := `
		INSERT INTO print_pairing_tokens (id, tenant_id, token_hash, alias, expires_at, created_by_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		token.ID, token.TenantID, token.TokenHash, token.Alias, token.ExpiresAt, token.CreatedByUserID,
	)
	return err
}

// Redeem consumes a pairing token and resolves it into a printer, all in
// one transaction. The token row is locked so two simultaneous redemptions
// of the same code cannot both succeed. Re-pairing converges by devices'
// fingerprint: an existing printer for the tenant gets its secret rotated
// and is reactivated instead of a duplicate being created.
func (r *pairingTokenRepo) Redeem(ctx context.Context, input *RedeemTokenInput) (*RedeemTokenResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tokenQuery := `
		SELECT id, tenant_id, alias, expires_at, used_at
		FROM print_pairing_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	var (
		tokenID   uuid.UUID
		tenantID  uuid.UUID
		alias     *string
		expiresAt time.Time
		usedAt    *time.Time
	)
	err = tx.QueryRow(ctx, tokenQuery, input.TokenHash).Scan(&tokenID, &tenantID, &alias, &expiresAt, &usedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if usedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	if time.Now().After(expiresAt) {
		return nil, ErrTokenExpired
	}

	existingQuery := `
		SELECT id
		FROM printers
		WHERE tenant_id = $1 AND device_fingerprint = $2
	`
	var printerID uuid.UUID
	created := false
	err = tx.QueryRow(ctx, existingQuery, tenantID, input.Fingerprint).Scan(&printerID)
	switch {
	case err == nil:
		updateQuery := `
			UPDATE printers
			SET name = $3, api_key_hash = $4, hostname = $5, os_name = $6, device_fingerprint = $7,
			    last_pairing_at = NOW(), active = true, updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2
		`
		name := desiredPrinterName(alias, input.SuggestedName, input.Hostname)
		if _, err := tx.Exec(ctx, updateQuery, tenantID, printerID, name, input.APIKeyHash, input.Hostname, input.OSName, input.Fingerprint); err != nil {
			return nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		defaultQuery := `
			SELECT EXISTS (
				SELECT 1 FROM printers WHERE tenant_id = $1 AND is_default = true AND active = true
			)
		`
		var hasDefault bool
		if err := tx.QueryRow(ctx, defaultQuery, tenantID).Scan(&hasDefault); err != nil {
			return nil, err
		}

		insertQuery := `
			INSERT INTO printers (id, tenant_id, name, api_key_hash, device_fingerprint, hostname, os_name, meta, is_default, active, last_pairing_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, true, NOW(), NOW(), NOW())
		`
		printerID = input.NewPrinterID
		created = true
		name := desiredPrinterName(alias, input.SuggestedName, input.Hostname)
		if _, err := tx.Exec(ctx, insertQuery, printerID, tenantID, name, input.APIKeyHash, input.Fingerprint, input.Hostname, input.OSName, !hasDefault); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	consumeQuery := `
		UPDATE print_pairing_tokens
		SET used_at = NOW(), used_by_printer_id = $2
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, consumeQuery, tokenID, printerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &RedeemTokenResult{PrinterID: printerID, Created: created}, nil
}

// Prune removes tokens whose expiry passed before the cutoff. Consumed
// tokens keep their back-reference until they age out the same way.
func (r *pairingTokenRepo) Prune(ctx context.Context, expiredBefore time.Time) (int64, error) {
	query := `DELETE FROM print_pairing_tokens WHERE expires_at < $1`
	tag, err := r.db.Exec(ctx, query, expiredBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func desiredPrinterName(alias, suggested, hostname *string) string {
	for _, candidate := range []*string{alias, suggested, hostname} {
		if candidate != nil && *candidate != "" {
			return *candidate
		}
	}
	return "Cocina Principal"
}
