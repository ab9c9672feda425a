package repositories

import (
	"context"
	"errors"

	"montisprint/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PrinterRepository interface {
	Create(ctx context.Context, printer *models.Printer) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Printer, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Printer, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*models.Printer, error)
	UpdateConfig(ctx context.Context, tenantID, id uuid.UUID, config map[string]any) (bool, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	ResolveDefault(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error)
	Heartbeat(ctx context.Context, tenantID, id uuid.UUID, meta map[string]any) error
}

type printerRepo struct {
	db Database
}

func NewPrinterRepo(db Database) PrinterRepository {
	return &printerRepo{db: db}
}

const printerColumns = `id, tenant_id, name, api_key_hash, device_fingerprint, hostname, os_name, meta, is_default, active, last_pairing_at, last_seen_at, created_at, updated_at`

func scanPrinter(row pgx.Row) (*models.Printer, error) {
	printer := &models.Printer{}
	err := row.Scan(
		&printer.ID, &printer.TenantID, &printer.Name, &printer.APIKeyHash,
		&printer.DeviceFingerprint, &printer.Hostname, &printer.OSName, &printer.Meta,
		&printer.IsDefault, &printer.Active, &printer.LastPairingAt, &printer.LastSeenAt,
		&printer.CreatedAt, &printer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return printer, nil
}

// Create inserts a new printer. When the printer is flagged as default, the
// previous default of the tenant is cleared in the same transaction so the
// tenant never holds two meaningful defaults.
func (r *printerRepo) Create(ctx context.Context, printer *models.Printer) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if printer.IsDefault {
		clearQuery := `
			UPDATE printers
			SET is_default = false, updated_at = NOW()
			WHERE tenant_id = $1 AND is_default = true
		`
		if _, err := tx.Exec(ctx, clearQuery, printer.TenantID); err != nil {
			return err
		}
	}

	insertQuery := `
		INSERT INTO printers (id, tenant_id, name, api_key_hash, device_fingerprint, hostname, os_name, meta, is_default, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err = tx.Exec(ctx, insertQuery,
		printer.ID, printer.TenantID, printer.Name, printer.APIKeyHash,
		printer.DeviceFingerprint, printer.Hostname, printer.OSName, printer.Meta,
		printer.IsDefault, printer.Active,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *printerRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Printer, error) {
	query := `
		SELECT ` + printerColumns + `
		FROM printers
		WHERE tenant_id = $1 AND id = $2
	`
	printer, err := scanPrinter(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return printer, err
}

// GetByAPIKeyHash looks a printer up by credential hash. This is the access
// gate lookup, so it is intentionally not tenant-scoped: the hash itself
// identifies the printer across tenants.
func (r *printerRepo) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Printer, error) {
	query := `
		SELECT ` + printerColumns + `
		FROM printers
		WHERE api_key_hash = $1
	`
	printer, err := scanPrinter(r.db.QueryRow(ctx, query, apiKeyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return printer, err
}

func (r *printerRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Printer, error) {
	query := `
		SELECT ` + printerColumns + `
		FROM printers
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var printers []*models.Printer
	for rows.Next() {
		printer, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, printer)
	}
	return printers, rows.Err()
}

// UpdateConfig merges unstructured configuration fields (paper width, font
// size, anything the agent understands) into the printer metadata. Unknown
// fields pass through opaquely.
func (r *printerRepo) UpdateConfig(ctx context.Context, tenantID, id uuid.UUID, config map[string]any) (bool, error) {
	query := `
		UPDATE printers
		SET meta = COALESCE(meta, '{}'::jsonb) || $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := r.db.Exec(ctx, query, tenantID, id, config)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a printer. Its jobs go with it via the cascade on
// print_jobs.printer_id.
func (r *printerRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	query := `DELETE FROM printers WHERE tenant_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResolveDefault prefers the explicitly flagged active default and falls
// back to the most recently created active printer.
func (r *printerRepo) ResolveDefault(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error) {
	preferredQuery := `
		SELECT id
		FROM printers
		WHERE tenant_id = $1 AND active = true AND is_default = true
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var id uuid.UUID
	err := r.db.QueryRow(ctx, preferredQuery, tenantID).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	fallbackQuery := `
		SELECT id
		FROM printers
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at DESC
		LIMIT 1
	`
	err = r.db.QueryRow(ctx, fallbackQuery, tenantID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// Heartbeat merges agent-reported status into the printer metadata
// (additive, never replace) and stamps last_seen_at. Liveness is derived by
// readers from last_seen_at, never stored as a flag.
func (r *printerRepo) Heartbeat(ctx context.Context, tenantID, id uuid.UUID, meta map[string]any) error {
	query := `
		UPDATE printers
		SET meta = COALESCE(meta, '{}'::jsonb) || $3, last_seen_at = NOW(), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	_, err := r.db.Exec(ctx, query, tenantID, id, meta)
	return err
}
