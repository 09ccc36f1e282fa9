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
	"errors"

	"github.com/zyros-dev/pgx-lower-api/ir"
)

var (
	// ErrInvalidQuery signals a query rejected by the read-only validator.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExecutionTimeout signals that a gated execution did not finish
	// (including its wait for the gate) within the configured bound.
	ErrExecutionTimeout = errors.New("query execution timeout")

	// ErrEngineUnavailable signals a connection or transport failure of
	// a backing engine.
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// QueryOutput is a single titled block of an engine's response - a result
// table, a plan, or an IR dump. A nil Latency means the block does not
// contribute to the result's total latency.
type QueryOutput struct {
	Title   string   `json:"title" msgpack:"title"`
	Content string   `json:"content" msgpack:"content"`
	Latency *float64 `json:"latencyMs,omitempty" msgpack:"latencyMs"`
}

// QueryResult is a single engine's response to one query.
type QueryResult struct {
	Engine    string        `json:"engine" msgpack:"engine"`
	Version   string        `json:"version" msgpack:"version"`
	LatencyMs float64       `json:"latencyMs" msgpack:"latencyMs"`
	Outputs   []QueryOutput `json:"outputs" msgpack:"outputs"`
}

// TotalLatency sums the latency contributions of all outputs,
// skipping diagnostic-only blocks.
func TotalLatency(outputs []QueryOutput) float64 {
	var total float64
	for _, out := range outputs {
		if out.Latency != nil {
			total += *out.Latency
		}
	}
	return total
}

// Engine is a backing query engine. All methods may block on network I/O
// and should be bounded by the provided context.
type Engine interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Execute(ctx context.Context, query string) ([]QueryOutput, error)
}

// Introspector is an optional engine capability: the engine can be asked
// to dump its internal lowering pipeline as a side channel of one
// execution. Stage collection must be combined with the execution gate -
// the staging directory tolerates only a single writer.
type Introspector interface {
	EnableIntrospection(ctx context.Context) error
	EnsureStagingDir() error
	PurgeStages() int
	CollectStages() ([]ir.Stage, error)
}
