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

	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/cnf"
	"github.com/zyros-dev/pgx-lower-api/ir"
)

// introspectionCategories selects which lowering phases the extension
// dumps into the staging directory.
const introspectionCategories = "AST_TRANSLATE,RELALG_LOWER,DB_LOWER,JIT"

// PgxLowerIR is the pgx-lower engine with IR introspection enabled. It
// behaves like PgxLower but can additionally be asked to dump the
// lowering pipeline of a single execution into the staging directory.
type PgxLowerIR struct {
	PgxLower
	extractor *ir.Extractor
}

func NewPgxLowerIR(conf cnf.EngineConf, extractor *ir.Extractor) *PgxLowerIR {
	return &PgxLowerIR{
		PgxLower:  PgxLower{pgConn: pgConn{conf: conf}},
		extractor: extractor,
	}
}

func (pli *PgxLowerIR) Name() string {
	return "pgx-lower-ir"
}

// EnableIntrospection loads the extension and switches on IR dumping for
// the current session. A failure to set the logging parameters is not
// fatal - the execution then simply yields no stages.
func (pli *PgxLowerIR) EnableIntrospection(ctx context.Context) error {
	conn, err := pli.ensure(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "LOAD 'pgx_lower.so'"); err != nil {
		log.Warn().Err(err).Msg("failed to load pgx_lower extension")
	}
	if _, err := conn.Exec(ctx, "SET pgx_lower.log_enable = true"); err != nil {
		log.Debug().Err(err).Msg("could not enable pgx_lower IR logging")
		return nil
	}
	if _, err := conn.Exec(
		ctx,
		fmt.Sprintf("SET pgx_lower.enabled_categories = '%s'", introspectionCategories),
	); err != nil {
		log.Debug().Err(err).Msg("could not set pgx_lower IR categories")
	}
	return nil
}

func (pli *PgxLowerIR) EnsureStagingDir() error {
	return pli.extractor.EnsureDir()
}

func (pli *PgxLowerIR) PurgeStages() int {
	return pli.extractor.Purge()
}

func (pli *PgxLowerIR) CollectStages() ([]ir.Stage, error) {
	return pli.extractor.CollectStages()
}
