// Package cache keeps generated report summary text so repeated views of a
// submission do not regenerate it.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cll-genie-server/internal/domain"
)

// SummaryKey is the cache key for one submission's summary text.
func SummaryKey(sampleID, submissionID string) string {
	return "summary:" + sampleID + ":" + submissionID
}

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryCache creates a cache holding at most maxItems entries for ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, domain.NewValidationError("cache_max_items", "must be positive", maxItems)
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](maxItems, nil, ttl)}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

var (
	_ domain.SummaryCache = (*MemoryCache)(nil)
	_ domain.SummaryCache = (*RedisCache)(nil)
)
