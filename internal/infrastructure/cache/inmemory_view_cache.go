package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	appbilling "github.com/medflow/backend/internal/application/billing"
)

// viewEntry holds a serialized invoice view with its expiration
type viewEntry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryInvoiceViewCache implements ViewCache using an in-memory map
// This is suitable for single-instance deployments and testing.
// Views are stored serialized so cached data is never aliased by callers.
type InMemoryInvoiceViewCache struct {
	mu        sync.RWMutex
	entries   map[string]viewEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryInvoiceViewCache creates a new in-memory invoice view cache
// It starts a background goroutine to clean up expired entries
func NewInMemoryInvoiceViewCache(ttl time.Duration) *InMemoryInvoiceViewCache {
	cache := &InMemoryInvoiceViewCache{
		entries:  make(map[string]viewEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

func viewKey(siteID, invoiceID uuid.UUID) string {
	return siteID.String() + ":" + invoiceID.String()
}

// Get returns the cached view for an invoice, or (nil, nil) on a miss
func (c *InMemoryInvoiceViewCache) Get(ctx context.Context, siteID, invoiceID uuid.UUID) (*appbilling.InvoiceView, error) {
	c.mu.RLock()
	e, exists := c.entries[viewKey(siteID, invoiceID)]
	c.mu.RUnlock()

	if !exists || time.Now().After(e.expiresAt) {
		return nil, nil
	}

	var view appbilling.InvoiceView
	if err := json.Unmarshal(e.payload, &view); err != nil {
		return nil, nil
	}
	return &view, nil
}

// Set stores a rendered invoice view with the configured TTL
func (c *InMemoryInvoiceViewCache) Set(ctx context.Context, siteID, invoiceID uuid.UUID, view *appbilling.InvoiceView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[viewKey(siteID, invoiceID)] = viewEntry{
		payload:   payload,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate removes the cached view for an invoice
func (c *InMemoryInvoiceViewCache) Invalidate(ctx context.Context, siteID, invoiceID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, viewKey(siteID, invoiceID))
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (c *InMemoryInvoiceViewCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *InMemoryInvoiceViewCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryInvoiceViewCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *InMemoryInvoiceViewCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure InMemoryInvoiceViewCache implements ViewCache
var _ appbilling.ViewCache = (*InMemoryInvoiceViewCache)(nil)
