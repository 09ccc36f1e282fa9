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

package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// dfltFlushDelay gives the engine time to flush asynchronously written
// stage files after the query call has returned.
const dfltFlushDelay = 100 * time.Millisecond

// Runner drives one validated query through the execution gate against
// one engine and assembles the QueryResult. The same Runner instance (and
// thus the same gate) must be shared by every component executing
// queries.
type Runner struct {
	gate *Gate

	// FlushDelay overrides the post-execution stage-flush wait;
	// zero means the default.
	FlushDelay time.Duration
}

func NewRunner(gate *Gate) *Runner {
	return &Runner{gate: gate}
}

func (r *Runner) flushDelay() time.Duration {
	if r.FlushDelay > 0 {
		return r.FlushDelay
	}
	return dfltFlushDelay
}

// Run validates the query, executes it exclusively and returns the
// engine's response with the summed latency. For introspectable engines
// the whole staging protocol (purge, execute, flush wait, collect, purge)
// runs under the gate - the staging directory tolerates one writer only.
func (r *Runner) Run(ctx context.Context, eng Engine, query string) (QueryResult, error) {
	if err := ValidateReadOnly(query); err != nil {
		return QueryResult{}, err
	}

	var fn func(ctx context.Context) ([]QueryOutput, error)
	if intro, ok := eng.(Introspector); ok {
		fn = func(ctx context.Context) ([]QueryOutput, error) {
			return r.executeWithIntrospection(ctx, eng, intro, query)
		}
	} else {
		fn = func(ctx context.Context) ([]QueryOutput, error) {
			return eng.Execute(ctx, query)
		}
	}

	// the version query shares the engine's connection, so it must run
	// under the gate too - the connection tolerates one query at a time
	var version string
	outputs, err := r.gate.RunExclusive(ctx, func(ctx context.Context) ([]QueryOutput, error) {
		outputs, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		version, err = eng.Version(ctx)
		if err != nil {
			return nil, err
		}
		return outputs, nil
	}, 0)
	if err != nil {
		return QueryResult{}, err
	}

	return QueryResult{
		Engine:    eng.Name(),
		Version:   version,
		LatencyMs: round2(TotalLatency(outputs)),
		Outputs:   outputs,
	}, nil
}

// executeWithIntrospection runs the per-execution staging protocol. The
// final purge is deferred so no stage files can leak into the next
// execution regardless of how this one ends.
func (r *Runner) executeWithIntrospection(
	ctx context.Context,
	eng Engine,
	intro Introspector,
	query string,
) ([]QueryOutput, error) {
	if err := intro.EnsureStagingDir(); err != nil {
		return nil, fmt.Errorf("failed to prepare staging directory: %w", err)
	}
	if removed := intro.PurgeStages(); removed > 0 {
		log.Debug().Int("files", removed).Msg("purged stale IR dumps")
	}
	defer func() {
		intro.PurgeStages()
	}()

	if err := intro.EnableIntrospection(ctx); err != nil {
		return nil, err
	}

	outputs, err := eng.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	select {
	case <-time.After(r.flushDelay()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	stages, err := intro.CollectStages()
	if err != nil {
		log.Warn().Err(err).Msg("failed to collect IR stages")
		return outputs, nil
	}
	for _, st := range stages {
		outputs = append(outputs, QueryOutput{
			Title:   "IR: " + st.Label,
			Content: st.Content,
		})
	}
	return outputs, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
