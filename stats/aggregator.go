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

package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Aggregator periodically compacts the latency log into hourly buckets.
// Runs are aligned to wall-clock hour boundaries; a failed run is simply
// retried on the next tick since aggregation is idempotent.
type Aggregator struct {
	db   *Database
	done chan struct{}
}

func NewAggregator(db *Database) *Aggregator {
	return &Aggregator{
		db:   db,
		done: make(chan struct{}),
	}
}

func (agg *Aggregator) Start(ctx context.Context) {
	go func() {
		defer close(agg.done)
		agg.runOnce()
		for {
			next := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				agg.runOnce()
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

func (agg *Aggregator) Stop(ctx context.Context) error {
	select {
	case <-agg.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (agg *Aggregator) runOnce() {
	updated, err := agg.db.ComputeHourlyStats()
	if err != nil {
		log.Error().Err(err).Msg("hourly stats aggregation failed - will retry on next tick")
		return
	}
	log.Info().Int("buckets", updated).Msg("hourly stats aggregation finished")
}
