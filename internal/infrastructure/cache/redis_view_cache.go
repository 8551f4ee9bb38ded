package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appbilling "github.com/medflow/backend/internal/application/billing"
	"github.com/medflow/backend/internal/infrastructure/config"
)

// RedisInvoiceViewCache implements ViewCache using Redis
// This is suitable for distributed deployments where multiple instances
// serve reads for the same site
type RedisInvoiceViewCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisInvoiceViewCache creates a new Redis-based invoice view cache
func NewRedisInvoiceViewCache(cfg config.RedisConfig, ttl time.Duration) (*RedisInvoiceViewCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisInvoiceViewCache{
		client:    client,
		keyPrefix: "billing:invoice-view:",
		ttl:       ttl,
	}, nil
}

// NewRedisInvoiceViewCacheWithClient creates a cache with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisInvoiceViewCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisInvoiceViewCache {
	if keyPrefix == "" {
		keyPrefix = "billing:invoice-view:"
	}
	return &RedisInvoiceViewCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (c *RedisInvoiceViewCache) key(siteID, invoiceID uuid.UUID) string {
	return c.keyPrefix + siteID.String() + ":" + invoiceID.String()
}

// Get returns the cached view for an invoice, or (nil, nil) on a miss
func (c *RedisInvoiceViewCache) Get(ctx context.Context, siteID, invoiceID uuid.UUID) (*appbilling.InvoiceView, error) {
	payload, err := c.client.Get(ctx, c.key(siteID, invoiceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached invoice view: %w", err)
	}

	var view appbilling.InvoiceView
	if err := json.Unmarshal(payload, &view); err != nil {
		// Corrupt entry, drop it so the next read repopulates.
		_ = c.client.Del(ctx, c.key(siteID, invoiceID)).Err()
		return nil, nil
	}
	return &view, nil
}

// Set stores a rendered invoice view with the configured TTL
func (c *RedisInvoiceViewCache) Set(ctx context.Context, siteID, invoiceID uuid.UUID, view *appbilling.InvoiceView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to serialize invoice view: %w", err)
	}

	if err := c.client.Set(ctx, c.key(siteID, invoiceID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache invoice view: %w", err)
	}
	return nil
}

// Invalidate removes the cached view for an invoice
func (c *RedisInvoiceViewCache) Invalidate(ctx context.Context, siteID, invoiceID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(siteID, invoiceID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate invoice view: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisInvoiceViewCache) Close() error {
	return c.client.Close()
}

// Ensure RedisInvoiceViewCache implements ViewCache
var _ appbilling.ViewCache = (*RedisInvoiceViewCache)(nil)
