package services

import (
	"context"
	"log"

	"montisprint/internal/caching"
	"montisprint/internal/common"
	"montisprint/internal/models"
	"montisprint/internal/repositories"

	"github.com/google/uuid"
)

// LivenessService records agent heartbeats. It never decides "online"
// itself; readers derive that from last_seen_at freshness.
type LivenessService interface {
	Heartbeat(ctx context.Context, tenantID, printerID uuid.UUID, status *string, uptime *float64, meta map[string]any) error
	LastStatus(ctx context.Context, tenantID, printerID uuid.UUID) (map[string]any, error)
}

type livenessService struct {
	printerRepo repositories.PrinterRepository
	cacheSvc    caching.CacheService
}

// NewLivenessService creates a new liveness service instance
func NewLivenessService(printerRepo repositories.PrinterRepository, cacheSvc caching.CacheService) LivenessService {
	return &livenessService{printerRepo: printerRepo, cacheSvc: cacheSvc}
}

func (s *livenessService) Heartbeat(ctx context.Context, tenantID, printerID uuid.UUID, status *string, uptime *float64, meta map[string]any) error {
	// Additive merge: extra agent-supplied metadata rides along, the
	// reserved keys always win.
	heartbeatMeta := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		heartbeatMeta[k] = v
	}
	if status != nil && *status != "" {
		heartbeatMeta["status"] = *status
	} else {
		heartbeatMeta["status"] = "ready"
	}
	if uptime != nil {
		heartbeatMeta["uptime"] = *uptime
	} else {
		heartbeatMeta["uptime"] = nil
	}

	if err := s.printerRepo.Heartbeat(ctx, tenantID, printerID, heartbeatMeta); err != nil {
		log.Printf("Failed to record heartbeat for printer %s: %v", printerID, err)
		return common.SecureErrorMessage("record heartbeat", err)
	}

	// Snapshot for dashboards. Best effort: a cache failure never blocks
	// the heartbeat it annotates.
	if err := s.cacheSvc.SetPrinterStatus(ctx, tenantID, printerID, heartbeatMeta, models.OnlineWindow); err != nil {
		log.Printf("Failed to cache heartbeat snapshot for printer %s: %v", printerID, err)
	}

	return nil
}

// LastStatus returns the most recent cached heartbeat payload, or nil when
// none is fresh. Authoritative liveness still lives in last_seen_at.
func (s *livenessService) LastStatus(ctx context.Context, tenantID, printerID uuid.UUID) (map[string]any, error) {
	status, err := s.cacheSvc.GetPrinterStatus(ctx, tenantID, printerID)
	if err != nil {
		log.Printf("Failed to read heartbeat snapshot for printer %s: %v", printerID, err)
		return nil, nil
	}
	return status, nil
}
