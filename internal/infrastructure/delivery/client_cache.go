package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pos/backend/internal/domain/integration"
)

// DefaultClientCacheTTL bounds how long a cached client and its token are reused
const DefaultClientCacheTTL = 30 * time.Minute

type cacheKey struct {
	organizationID uuid.UUID
	provider       integration.Provider
}

type cacheEntry struct {
	client      integration.DeliveryPlatform
	fingerprint string
	expiresAt   time.Time
}

// ClientCache keeps one client per (organization, provider) so OAuth tokens are reused
// across requests. A change of store ID or credentials builds a fresh client.
type ClientCache struct {
	factory *Factory
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewClientCache creates a client cache. A non-positive ttl uses DefaultClientCacheTTL.
func NewClientCache(factory *Factory, ttl time.Duration) *ClientCache {
	if ttl <= 0 {
		ttl = DefaultClientCacheTTL
	}
	return &ClientCache{
		factory: factory,
		ttl:     ttl,
		now:     factory.deps.now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// ClientFor returns the cached client for the integration, creating it when absent, expired
// or built from different credentials
func (c *ClientCache) ClientFor(_ context.Context, i *integration.Integration) (integration.DeliveryPlatform, error) {
	key := cacheKey{organizationID: i.OrganizationID, provider: i.Provider}
	fp := fingerprint(i)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.fingerprint == fp && now.Before(e.expiresAt) {
		return e.client, nil
	}

	client, err := c.factory.CreateFor(i)
	if err != nil {
		return nil, err
	}
	c.sweepLocked(now)
	c.entries[key] = cacheEntry{client: client, fingerprint: fp, expiresAt: now.Add(c.ttl)}
	return client, nil
}

// Evict drops the cached client of an integration
func (c *ClientCache) Evict(organizationID uuid.UUID, provider integration.Provider) {
	c.mu.Lock()
	delete(c.entries, cacheKey{organizationID: organizationID, provider: provider})
	c.mu.Unlock()
}

// Len returns the number of cached clients
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ClientCache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// fingerprint hashes the store ID and credentials; map keys marshal in sorted order
func fingerprint(i *integration.Integration) string {
	data, err := json.Marshal(struct {
		StoreID     string                  `json:"store_id"`
		Credentials integration.Credentials `json:"credentials"`
	}{i.StoreID, i.Credentials})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
