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

	"github.com/zyros-dev/pgx-lower-api/cnf"
)

// pgxLowerVersion is reported until the extension exposes its own
// version function.
const pgxLowerVersion = "0.1.0"

// PgxLower is the MLIR-lowering engine without introspection. Its
// response carries the result table followed by the optimized plan.
type PgxLower struct {
	pgConn
}

func NewPgxLower(conf cnf.EngineConf) *PgxLower {
	return &PgxLower{pgConn: pgConn{conf: conf}}
}

func (pl *PgxLower) Name() string {
	return "pgx-lower"
}

func (pl *PgxLower) Connect(ctx context.Context) error {
	return pl.connect(ctx)
}

func (pl *PgxLower) Disconnect(ctx context.Context) error {
	return pl.disconnect(ctx)
}

func (pl *PgxLower) Version(ctx context.Context) (string, error) {
	pgVer, err := pl.serverVersion(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("pgx-lower %s (%s)", pgxLowerVersion, pgVer), nil
}

func (pl *PgxLower) Execute(ctx context.Context, query string) ([]QueryOutput, error) {
	table, tableDur, err := pl.fetchTable(ctx, query)
	if err != nil {
		return nil, err
	}
	plan, planDur, err := pl.fetchPlan(ctx, "EXPLAIN", query)
	if err != nil {
		return nil, err
	}
	return []QueryOutput{
		{
			Title:   "Optimized Results",
			Content: table,
			Latency: millis(tableDur),
		},
		{
			Title:   "Optimized Query Plan",
			Content: plan,
			Latency: millis(planDur),
		},
	}, nil
}
