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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// newDebugKey generates the opaque process-lifetime secret which gates
// administrative actions. The key is written to the log on startup and
// exists nowhere else.
func newDebugKey() string {
	raw := make([]byte, 15)
	if _, err := rand.Read(raw); err != nil {
		log.Fatal().Err(err).Msg("failed to generate debug key")
	}
	key := base64.URLEncoding.EncodeToString(raw)
	if len(key) > 20 {
		key = key[:20]
	}
	log.Info().Str("debugKey", key).Msg("generated debug access key")
	return key
}

type debugRequest struct {
	Key     string `json:"key"`
	Request string `json:"request"`
	Content string `json:"content,omitempty"`
}

func (api *apiServer) handleDebug(ctx *gin.Context) {
	var req debugRequest
	if err := ctx.BindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Key != api.debugKey {
		log.Warn().Str("clientIp", ctx.ClientIP()).Msg("invalid debug key attempt")
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("invalid debug key"), http.StatusForbidden)
		return
	}
	log.Info().Str("request", req.Request).Msg("debug request")

	switch req.Request {
	case "compute_stats":
		updated, err := api.db.ComputeHourlyStats()
		if err != nil {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
			return
		}
		uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
			"status":  "success",
			"buckets": updated,
		})
	case "query_log_count":
		total, distinct, err := api.db.QueryLogCounts()
		if err != nil {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
			return
		}
		uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
			"status":        "success",
			"totalQueries":  total,
			"uniqueQueries": distinct,
		})
	case "clear_stats":
		if err := api.db.ClearPerformanceStats(); err != nil {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
			return
		}
		log.Info().Msg("performance stats cleared")
		uniresp.WriteJSONResponse(ctx.Writer, map[string]any{"status": "success"})
	case "info":
		uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
			"status": "success",
			"availableRequests": []string{
				"compute_stats - manually trigger hourly stats computation",
				"query_log_count - get query log statistics",
				"clear_stats - clear the performance stats table",
				"info - show this information",
			},
		})
	default:
		uniresp.RespondWithErrorJSON(
			ctx,
			fmt.Errorf("unknown debug request: %s", req.Request),
			http.StatusBadRequest,
		)
	}
}
