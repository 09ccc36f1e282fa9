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

package apiserver

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/czcorpus/cnc-gokit/unireq"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/engine"
	"github.com/zyros-dev/pgx-lower-api/stats"
)

const maxStatsLimit = 1000

func statusForExecError(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (api *apiServer) handleQuery(ctx *gin.Context) {
	var req queryRequest
	if err := ctx.BindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("query cannot be empty"), http.StatusBadRequest)
		return
	}
	eng, err := api.selectEngine(req.Engine)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if err := engine.ValidateReadOnly(req.Query); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}

	requestID := uuid.New().String()
	fingerprint := stats.Fingerprint(req.Query)
	clientIP := ctx.ClientIP()

	cached, err := api.db.GetCachedResult(fingerprint)
	if err != nil {
		log.Error().Err(err).Str("fingerprint", fingerprint).Msg("cache lookup failed")
	}
	if cached != nil {
		if !api.limiter.Allow(clientIP, true) {
			api.metrics.rateLimited.Inc()
			uniresp.RespondWithErrorJSON(
				ctx, fmt.Errorf("too many requests"), http.StatusTooManyRequests)
			return
		}
		api.metrics.cacheHits.Inc()
		api.auditAndTrack(clientIP, fingerprint, requestID, true)
		uniresp.WriteJSONResponse(ctx.Writer, queryResponse{
			RequestID: requestID,
			Cached:    true,
			Result:    *cached,
		})
		return
	}

	if !api.limiter.Allow(clientIP, false) {
		api.metrics.rateLimited.Inc()
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("too many requests"), http.StatusTooManyRequests)
		return
	}

	result, err := api.runner.Run(ctx.Request.Context(), eng, req.Query)
	if err != nil {
		api.metrics.engineFailures.WithLabelValues(eng.Name()).Inc()
		uniresp.RespondWithErrorJSON(ctx, err, statusForExecError(err))
		return
	}
	api.metrics.queriesTotal.WithLabelValues(eng.Name()).Inc()

	// cache and telemetry writes are best-effort - a failure here must
	// not fail an otherwise successful response
	if err := api.db.AddLatencyRecord(stats.LatencyRecord{
		QueryHash: fingerprint,
		Engine:    eng.Name(),
		LatencyMs: result.LatencyMs,
		Created:   time.Now(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to log query latency")
	}
	if err := api.db.CacheResult(fingerprint, req.Query, result); err != nil {
		log.Error().Err(err).Str("fingerprint", fingerprint).Msg("failed to cache result")
	}
	api.auditAndTrack(clientIP, fingerprint, requestID, false)

	uniresp.WriteJSONResponse(ctx.Writer, queryResponse{
		RequestID: requestID,
		Cached:    false,
		Result:    result,
	})
}

func (api *apiServer) handleCompare(ctx *gin.Context) {
	var req queryRequest
	if err := ctx.BindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("query cannot be empty"), http.StatusBadRequest)
		return
	}
	if err := engine.ValidateReadOnly(req.Query); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if len(api.compareEngines) < 2 {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("comparison requires two configured engines"), http.StatusNotFound)
		return
	}

	clientIP := ctx.ClientIP()
	if !api.limiter.Allow(clientIP, false) {
		api.metrics.rateLimited.Inc()
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("too many requests"), http.StatusTooManyRequests)
		return
	}

	requestID := uuid.New().String()
	fingerprint := stats.Fingerprint(req.Query)

	// engine failures must stay isolated: one engine failing cannot
	// fail the other's result
	results := make(map[string]compareEntry, len(api.compareEngines))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, eng := range api.compareEngines {
		wg.Add(1)
		go func(eng engine.Engine) {
			defer wg.Done()
			result, err := api.runner.Run(ctx.Request.Context(), eng, req.Query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				api.metrics.engineFailures.WithLabelValues(eng.Name()).Inc()
				results[eng.Name()] = compareEntry{Error: err.Error()}
				return
			}
			api.metrics.queriesTotal.WithLabelValues(eng.Name()).Inc()
			results[eng.Name()] = compareEntry{Result: &result}
			if err := api.db.AddLatencyRecord(stats.LatencyRecord{
				QueryHash: fingerprint,
				Engine:    eng.Name(),
				LatencyMs: result.LatencyMs,
				Created:   time.Now(),
			}); err != nil {
				log.Error().Err(err).Msg("failed to log query latency")
			}
		}(eng)
	}
	wg.Wait()

	api.auditAndTrack(clientIP, fingerprint, requestID, false)
	uniresp.WriteJSONResponse(ctx.Writer, compareResponse{
		RequestID: requestID,
		Results:   results,
	})
}

func (api *apiServer) handlePerformanceStats(ctx *gin.Context) {
	limit, ok := unireq.GetURLIntArgOrFail(ctx, "limit", api.conf.StatsLimit)
	if !ok {
		return
	}
	if limit < 1 || limit > maxStatsLimit {
		uniresp.RespondWithErrorJSON(
			ctx,
			fmt.Errorf("limit must be between 1 and %d", maxStatsLimit),
			http.StatusBadRequest,
		)
		return
	}
	buckets, err := api.db.RecentStats(limit)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{"stats": buckets})
}

func (api *apiServer) handleHealth(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(api.startTime).Seconds()),
		"version":       api.version,
	})
}

func (api *apiServer) auditAndTrack(clientIP, fingerprint, requestID string, cached bool) {
	if err := api.db.AddUserRequest(clientIP, fingerprint); err != nil {
		log.Error().Err(err).Msg("failed to write request audit record")
	}
	if api.tracker != nil {
		go api.tracker.TrackQuery(requestID, cached)
	}
}
