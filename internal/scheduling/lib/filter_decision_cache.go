// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"log/slog"
	"time"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
)

type decisionKey struct {
	requestID string
	filter    string
	// Request dependent discriminator of the filter, see DecisionKeyer.
	input string
	host  string
}

// Cache of host decisions of filters that declare RunOncePerRequest.
// The scheduler may call several times for the same request, e.g. once per
// instance of a multi-create, and the decisions of these filters do not
// change within a request.
type DecisionCache struct {
	lru *expirable.LRU[decisionKey, bool]
}

// Create a new decision cache. A size of 0 means no size limit.
func NewDecisionCache(size int, ttl time.Duration) *DecisionCache {
	return &DecisionCache{lru: expirable.NewLRU[decisionKey, bool](size, nil, ttl)}
}

// Create a decision cache from the configuration, with defaults applied.
func NewDecisionCacheFromConfig(c conf.DecisionCacheConfig) *DecisionCache {
	size := c.Size
	if size == 0 {
		size = 10_000
	}
	ttl := time.Duration(c.TTLSeconds) * time.Second
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return NewDecisionCache(size, ttl)
}

// Wraps a filter so that its decisions are reused within one request,
// as long as the filter's decision key stays the same.
type FilterDecisionCache[RequestType PipelineRequest] struct {
	filter   Filter[RequestType]
	keyer    DecisionKeyer[RequestType]
	stepName string
	cache    *DecisionCache
	// Counts decisions served from the cache.
	hits prometheus.Counter
}

func cacheFilterDecisions[RequestType PipelineRequest](
	filter Filter[RequestType],
	keyer DecisionKeyer[RequestType],
	stepName string,
	cache *DecisionCache,
	m PipelineMonitor,
) *FilterDecisionCache[RequestType] {

	var hits prometheus.Counter
	if m.cachedDecisionsCounter != nil {
		hits = m.cachedDecisionsCounter.WithLabelValues(m.PipelineName, stepName)
	}
	return &FilterDecisionCache[RequestType]{
		filter:   filter,
		keyer:    keyer,
		stepName: stepName,
		cache:    cache,
		hits:     hits,
	}
}

func (c *FilterDecisionCache[RequestType]) Init(ctx context.Context, opts conf.RawOpts) error {
	return c.filter.Init(ctx, opts)
}

func (c *FilterDecisionCache[RequestType]) Capabilities() FilterCapabilities {
	return c.filter.Capabilities()
}

// Serve the decisions from the cache if every host of the request has one.
// Otherwise run the wrapped filter and remember its decisions.
func (c *FilterDecisionCache[RequestType]) Run(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error) {
	requestID := request.GetRequestID()
	if requestID == "" || c.cache == nil || c.keyer == nil {
		return c.filter.Run(ctx, traceLog, request)
	}
	key := decisionKey{requestID: requestID, filter: c.stepName, input: c.keyer.DecisionKey(request)}
	hosts := uniqueHosts(request.GetHosts())
	if cached, ok := c.lookup(key, hosts); ok {
		traceLog.Info("scheduler: reusing cached filter decisions", "name", c.stepName, "hosts", len(hosts))
		if c.hits != nil {
			c.hits.Add(float64(len(hosts)))
		}
		return cached, nil
	}
	result, err := c.filter.Run(ctx, traceLog, request)
	if err != nil {
		return nil, err
	}
	for _, host := range hosts {
		_, passed := result.Activations[host]
		key.host = host
		c.cache.lru.Add(key, passed)
	}
	return result, nil
}

func (c *FilterDecisionCache[RequestType]) lookup(key decisionKey, hosts []string) (*StepResult, bool) {
	result := &StepResult{Activations: make(map[string]float64, len(hosts))}
	for _, host := range hosts {
		key.host = host
		passed, ok := c.cache.lru.Get(key)
		if !ok {
			return nil, false
		}
		if passed {
			result.Activations[host] = 0
		}
	}
	return result, true
}
