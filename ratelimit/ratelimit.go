// Copyright 2025 Zyros Dev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit provides per-client sliding-window admission control
// with independent budgets for cache hits and cache misses. The state is
// local to one process instance - running multiple replicas multiplies
// the effective limits.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited signals a denied admission.
var ErrRateLimited = errors.New("rate limit exceeded")

const windowSize = 60 * time.Second

type bucketKind int

const (
	bucketCached bucketKind = iota
	bucketUncached
)

type windowKey struct {
	clientID string
	kind     bucketKind
}

// Limiter tracks, per (client, bucket kind), the timestamps of accepted
// requests within the trailing 60 seconds. Entries are pruned lazily on
// each check.
type Limiter struct {
	mu            sync.Mutex
	windows       map[windowKey][]time.Time
	cachedLimit   int
	uncachedLimit int

	// now is replaceable in tests
	now func() time.Time
}

func NewLimiter(cachedLimit, uncachedLimit int) *Limiter {
	return &Limiter{
		windows:       make(map[windowKey][]time.Time),
		cachedLimit:   cachedLimit,
		uncachedLimit: uncachedLimit,
		now:           time.Now,
	}
}

// Allow admits or denies a request. Cached and uncached budgets are
// independent: a client out of uncached capacity can still read cached
// results. An admitted request is recorded against its bucket.
func (lim *Limiter) Allow(clientID string, cacheHit bool) bool {
	key := windowKey{clientID: clientID, kind: bucketUncached}
	limit := lim.uncachedLimit
	if cacheHit {
		key.kind = bucketCached
		limit = lim.cachedLimit
	}

	lim.mu.Lock()
	defer lim.mu.Unlock()

	now := lim.now()
	cutoff := now.Add(-windowSize)
	window := lim.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		lim.windows[key] = kept
		return false
	}
	lim.windows[key] = append(kept, now)
	return true
}
