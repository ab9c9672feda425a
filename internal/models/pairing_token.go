package models

import (
	"time"

	"github.com/google/uuid"
)

// PairingToken is a single-use activation ticket that lets an agent obtain
// its long-lived API key. Only the hash of the human activation code is
// stored. Expiry is derived at redemption time, never stored as a state.
type PairingToken struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TenantID        uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	TokenHash       string     `json:"-" db:"token_hash"`
	Alias           *string    `json:"alias" db:"alias"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt          *time.Time `json:"used_at" db:"used_at"`
	UsedByPrinterID *uuid.UUID `json:"used_by_printer_id" db:"used_by_printer_id"`
	CreatedByUserID *uuid.UUID `json:"created_by_user_id" db:"created_by_user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Pairing token TTL bounds. Caller-requested TTLs are clamped server-side.
const (
	PairingTokenMinTTL     = 5 * time.Minute
	PairingTokenMaxTTL     = 30 * time.Minute
	PairingTokenDefaultTTL = 10 * time.Minute
)

// ClampPairingTTL clamps a requested TTL in minutes to the allowed window.
// A zero or negative request falls back to the default.
func ClampPairingTTL(minutes int) time.Duration {
	if minutes <= 0 {
		return PairingTokenDefaultTTL
	}
	ttl := time.Duration(minutes) * time.Minute
	if ttl < PairingTokenMinTTL {
		return PairingTokenMinTTL
	}
	if ttl > PairingTokenMaxTTL {
		return PairingTokenMaxTTL
	}
	return ttl
}
