// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package authz

import (
	"sync"
	"time"
)

// maxCachedDecisions bounds the decision cache. The key population is
// (credential role x class), both small closed sets in a healthy
// installation; hitting the cap means something is spraying synthetic
// credentials, and dumping the cache is cheaper than policing it.
const maxCachedDecisions = 4096

// decisionKey identifies one registration decision: may this credential
// register a set under this class. The operation is always "register",
// so it is not part of the key.
type decisionKey struct {
	credential string
	class      string
}

type decision struct {
	allowed   bool
	expiresAt time.Time
}

// decisionCache memoizes registration decisions between policy changes.
// Entries expire on a TTL so an external edit to the policy file (with
// auto-reload off) still takes effect eventually; explicit policy
// mutations through the Enforcer reset the cache immediately.
type decisionCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[decisionKey]decision
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &decisionCache{
		ttl:     ttl,
		entries: make(map[decisionKey]decision),
	}
}

// lookup returns the cached decision for (credential, class), if one is
// present and fresh. Expired entries are deleted on sight rather than
// by a sweeper goroutine; the key population is too small to justify
// one.
func (c *decisionCache) lookup(credential, class string) (allowed, ok bool) {
	key := decisionKey{credential, class}

	c.mu.RLock()
	d, present := c.entries[key]
	c.mu.RUnlock()

	if !present {
		RecordCacheMiss()
		return false, false
	}
	if time.Now().After(d.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		RecordCacheMiss()
		return false, false
	}
	RecordCacheHit()
	return d.allowed, true
}

// store records a decision. Overflow resets the whole cache (see
// maxCachedDecisions).
func (c *decisionCache) store(credential, class string, allowed bool) {
	c.mu.Lock()
	if len(c.entries) >= maxCachedDecisions {
		c.entries = make(map[decisionKey]decision)
		RecordCacheReset()
	}
	c.entries[decisionKey{credential, class}] = decision{
		allowed:   allowed,
		expiresAt: time.Now().Add(c.ttl),
	}
	SetCacheSize(len(c.entries))
	c.mu.Unlock()
}

// invalidateCredential drops every class decision for one credential,
// for role grants/revocations that change only that credential's reach.
func (c *decisionCache) invalidateCredential(credential string) {
	c.mu.Lock()
	for key := range c.entries {
		if key.credential == credential {
			delete(c.entries, key)
		}
	}
	SetCacheSize(len(c.entries))
	c.mu.Unlock()
}

// reset drops everything, for policy-wide mutations and reloads.
func (c *decisionCache) reset() {
	c.mu.Lock()
	c.entries = make(map[decisionKey]decision)
	c.mu.Unlock()
	SetCacheSize(0)
	RecordCacheReset()
}

// size reports the current entry count, for introspection and tests.
func (c *decisionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
