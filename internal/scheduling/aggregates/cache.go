// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package aggregates

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RequestCache memoizes aggregate lookups for the duration of one
// scheduling request. Aggregate membership does not change mid-request.
//
// Concurrent lookups for the same host share one call to the underlying
// resolver. Failed lookups are not cached.
type RequestCache struct {
	resolver Resolver
	group    singleflight.Group

	mu      sync.RWMutex
	results map[string]Metadata
}

func NewRequestCache(resolver Resolver) *RequestCache {
	return &RequestCache{resolver: resolver, results: make(map[string]Metadata)}
}

func (c *RequestCache) Resolve(ctx context.Context, host string) (Metadata, error) {
	c.mu.RLock()
	md, ok := c.results[host]
	c.mu.RUnlock()
	if ok {
		return md, nil
	}
	v, err, _ := c.group.Do(host, func() (any, error) {
		c.mu.RLock()
		md, ok := c.results[host]
		c.mu.RUnlock()
		if ok {
			return md, nil
		}
		md, err := c.resolver.Resolve(ctx, host)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[host] = md
		c.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Metadata), nil
}
