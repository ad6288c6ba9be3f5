// Package cache memoizes completed analyses for a short window.
//
// The cache is a true TTL'd LRU with a hard capacity bound, not the
// evict-one-arbitrary-key approximation: expiry and recency are both
// honored. Caching is opt-in per call at the orchestrator level.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FingerprintPrefixLen bounds how much task content feeds the fingerprint.
const FingerprintPrefixLen = 100

// Fingerprint derives the stable cache key for a task: a hash of the task
// id, the leading content, and the task type.
func Fingerprint(taskID, content, taskType string) string {
	if len(content) > FingerprintPrefixLen {
		content = content[:FingerprintPrefixLen]
	}
	h := sha256.New()
	h.Write([]byte(taskID))
	h.Write([]byte{0})
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(taskType))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is a bounded, expiring memo keyed by fingerprint. Safe for
// concurrent use; a write race between identical in-flight computations is
// last-wins, which is acceptable because both values are equivalent.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a cache with the given capacity bound and entry TTL.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](capacity, nil, ttl)}
}

// Get returns the cached value for a fingerprint, if present and fresh.
func (c *Cache[V]) Get(fingerprint string) (V, bool) {
	return c.lru.Get(fingerprint)
}

// Put stores a value under a fingerprint, evicting the least recently used
// entry if the capacity bound is exceeded.
func (c *Cache[V]) Put(fingerprint string, value V) {
	c.lru.Add(fingerprint, value)
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
