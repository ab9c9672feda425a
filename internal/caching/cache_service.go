package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService is the non-authoritative fast path of the print subsystem.
// Everything here is derived state: liveness snapshots for dashboards and
// counters for rate limiting. The relational store stays the single source
// of truth.
type CacheService interface {
	// Liveness snapshots (latest heartbeat per printer, short TTL)
	SetPrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID, status map[string]any, ttl time.Duration) error
	GetPrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID) (map[string]any, error)
	DeletePrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID) error

	// Rate limiting (pairing redemption brute-force protection)
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Generic string operations
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port style addresses as well as bare host:port.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func printerStatusKey(tenantID, printerID uuid.UUID) string {
	return fmt.Sprintf("montisprint:printer-status:%s:%s", tenantID.String(), printerID.String())
}

func (r *redisCacheService) SetPrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID, status map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal printer status: %w", err)
	}
	return r.client.Set(ctx, printerStatusKey(tenantID, printerID), data, ttl).Err()
}

func (r *redisCacheService) GetPrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID) (map[string]any, error) {
	data, err := r.client.Get(ctx, printerStatusKey(tenantID, printerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}
	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal printer status: %w", err)
	}
	return status, nil
}

func (r *redisCacheService) DeletePrinterStatus(ctx context.Context, tenantID, printerID uuid.UUID) error {
	return r.client.Del(ctx, printerStatusKey(tenantID, printerID)).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("montisprint:ratelimit:%s", key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return false, err
	}

	// Set expiry on first request
	if count == 1 {
		r.client.Expire(ctx, cacheKey, window)
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
