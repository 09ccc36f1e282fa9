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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/zyros-dev/pgx-lower-api/apiserver"
	"github.com/zyros-dev/pgx-lower-api/benchmark"
	"github.com/zyros-dev/pgx-lower-api/cnf"
	"github.com/zyros-dev/pgx-lower-api/engine"
	"github.com/zyros-dev/pgx-lower-api/ir"
	"github.com/zyros-dev/pgx-lower-api/stats"
)

const (
	errColor = color.FgHiRed
)

// buildEngine instantiates a single engine by name for the CLI actions.
func buildEngine(conf *cnf.Conf, name string) (engine.Engine, error) {
	switch name {
	case "postgres":
		if conf.Postgres.IsZero() {
			return nil, fmt.Errorf("postgres engine not configured")
		}
		return engine.NewPostgres(conf.Postgres), nil
	case "pgx-lower":
		return engine.NewPgxLower(conf.PgxLower), nil
	case "pgx-lower-ir":
		return engine.NewPgxLowerIR(conf.PgxLower, ir.NewExtractor(conf.StagingDir)), nil
	}
	return nil, fmt.Errorf("unknown engine: %s", name)
}

func runActionServer(conf *cnf.Conf, version string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	apiserver.Run(ctx, conf, version)
}

func runActionBench(conf *cnf.Conf, engineName string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := stats.NewDatabase(conf.WorkingDBPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	if err := db.Init(); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	defer db.Close()

	eng, err := buildEngine(conf, engineName)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorGeneralFailure)
	}
	defer eng.Disconnect(context.Background())

	runner := engine.NewRunner(engine.NewGate(conf.GateTimeout()))
	exe := benchmark.NewExecutor(db, runner, eng)
	if err := exe.RunFull(ctx); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorBenchFailed)
	}
}

func runActionStats(conf *cnf.Conf) {
	db, err := stats.NewDatabase(conf.WorkingDBPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	if err := db.Init(); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	defer db.Close()

	updated, err := db.ComputeHourlyStats()
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorGeneralFailure)
	}
	fmt.Printf("updated %d hourly bucket(s)\n", updated)
}
