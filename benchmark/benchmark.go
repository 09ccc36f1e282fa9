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

// Package benchmark replays previously seen queries against one engine
// in a controlled environment. Every replay passes through the same
// execution gate as interactive traffic, so the recorded latencies feed
// the regular hourly aggregation.
package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/zyros-dev/pgx-lower-api/engine"
	"github.com/zyros-dev/pgx-lower-api/stats"
)

type Executor struct {
	statsDB *stats.Database
	runner  *engine.Runner
	eng     engine.Engine
}

func NewExecutor(statsDB *stats.Database, runner *engine.Runner, eng engine.Engine) *Executor {
	return &Executor{
		statsDB: statsDB,
		runner:  runner,
		eng:     eng,
	}
}

// RunFull replays all cached queries, one by one, and appends a fresh
// latency-log row per successful replay. A failing query is reported and
// skipped - the replay of the rest continues.
func (e *Executor) RunFull(ctx context.Context) error {
	queries, err := e.statsDB.GetCachedQueries()
	if err != nil {
		return fmt.Errorf("failed to run full benchmark: %w", err)
	}
	if len(queries) == 0 {
		fmt.Println("no queries to benchmark")
		return nil
	}

	okColor := color.New(color.FgGreen).SprintFunc()
	errColor := color.New(color.FgHiRed).SprintFunc()
	bar := progressbar.Default(int64(len(queries)), "benchmarking")

	for _, cq := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := e.runner.Run(ctx, e.eng, cq.Query)
		bar.Add(1)
		if err != nil {
			fmt.Printf("\n%s %s\n", errColor("FAIL"), cq.Query)
			log.Error().
				Err(err).
				Str("fingerprint", cq.Fingerprint).
				Msg("failed to perform benchmark query, skipping to the next")
			continue
		}
		fmt.Printf("\n%s %s (%.2f ms)\n", okColor("OK"), cq.Query, result.LatencyMs)
		err = e.statsDB.AddLatencyRecord(stats.LatencyRecord{
			QueryHash: cq.Fingerprint,
			Engine:    e.eng.Name(),
			LatencyMs: result.LatencyMs,
			Created:   time.Now(),
		})
		if err != nil {
			log.Error().Err(err).Send()
		}
	}
	return nil
}
