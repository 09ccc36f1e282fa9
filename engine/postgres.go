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

	"github.com/zyros-dev/pgx-lower-api/cnf"
)

// Postgres is the stock PostgreSQL engine used as the comparison
// baseline. Its response carries an EXPLAIN ANALYZE plan followed by the
// plain result table, each with its own latency contribution.
type Postgres struct {
	pgConn
}

func NewPostgres(conf cnf.EngineConf) *Postgres {
	return &Postgres{pgConn: pgConn{conf: conf}}
}

func (pg *Postgres) Name() string {
	return "postgres"
}

func (pg *Postgres) Connect(ctx context.Context) error {
	return pg.connect(ctx)
}

func (pg *Postgres) Disconnect(ctx context.Context) error {
	return pg.disconnect(ctx)
}

func (pg *Postgres) Version(ctx context.Context) (string, error) {
	return pg.serverVersion(ctx)
}

func (pg *Postgres) Execute(ctx context.Context, query string) ([]QueryOutput, error) {
	plan, planDur, err := pg.fetchPlan(ctx, "EXPLAIN ANALYZE", query)
	if err != nil {
		return nil, err
	}
	table, tableDur, err := pg.fetchTable(ctx, query)
	if err != nil {
		return nil, err
	}
	return []QueryOutput{
		{
			Title:   "Query Plan (EXPLAIN ANALYZE)",
			Content: plan,
			Latency: millis(planDur),
		},
		{
			Title:   "Query Results",
			Content: table,
			Latency: millis(tableDur),
		},
	}, nil
}
