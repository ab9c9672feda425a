package models

import (
	"time"

	"github.com/google/uuid"
)

// Printer is a tenant-scoped printing agent registration. The plaintext API
// key is returned exactly once at registration/pairing time; only its hash
// is persisted.
type Printer struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	TenantID          uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	Name              string         `json:"name" db:"name"`
	APIKeyHash        string         `json:"-" db:"api_key_hash"`
	DeviceFingerprint *string        `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	Hostname          *string        `json:"hostname,omitempty" db:"hostname"`
	OSName            *string        `json:"os_name,omitempty" db:"os_name"`
	Meta              map[string]any `json:"meta" db:"meta"`
	IsDefault         bool           `json:"is_default" db:"is_default"`
	Active            bool           `json:"active" db:"active"`
	LastPairingAt     *time.Time     `json:"last_pairing_at" db:"last_pairing_at"`
	LastSeenAt        *time.Time     `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// PrinterSummary is the listing view of a printer. It never carries the
// credential hash and adds the derived online flag.
type PrinterSummary struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Meta       map[string]any `json:"meta"`
	IsDefault  bool           `json:"is_default"`
	Active     bool           `json:"active"`
	Online     bool           `json:"online"`
	LastSeenAt *time.Time     `json:"last_seen_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// OnlineWindow is the freshness window used to derive the online flag from
// last_seen_at. Online status is never stored.
const OnlineWindow = 90 * time.Second

// IsOnline reports whether the printer heartbeated within the freshness
// window, evaluated against the supplied reference time.
func (p *Printer) IsOnline(now time.Time) bool {
	return p.LastSeenAt != nil && now.Sub(*p.LastSeenAt) <= OnlineWindow
}

// Summary converts a printer row into its listing view.
func (p *Printer) Summary(now time.Time) *PrinterSummary {
	return &PrinterSummary{
		ID:         p.ID,
		Name:       p.Name,
		Meta:       p.Meta,
		IsDefault:  p.IsDefault,
		Active:     p.Active,
		Online:     p.IsOnline(now),
		LastSeenAt: p.LastSeenAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
