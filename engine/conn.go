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
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/cnf"
)

// pgConn wraps a lazily established pgx connection to one engine. The
// mutex guards the connection pointer - pgx connections are not safe for
// concurrent queries, so query traffic itself must stay serialized by
// the execution gate.
type pgConn struct {
	conf cnf.EngineConf
	mu   sync.Mutex
	conn *pgx.Conn
}

func (pc *pgConn) connString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s",
		pc.conf.Host, pc.conf.Port, pc.conf.User, pc.conf.Password, pc.conf.Database,
	)
}

func (pc *pgConn) connect(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.connectLocked(ctx)
}

func (pc *pgConn) connectLocked(ctx context.Context) error {
	if pc.conn != nil && !pc.conn.IsClosed() {
		return nil
	}
	conn, err := pgx.Connect(ctx, pc.connString())
	if err != nil {
		return fmt.Errorf("%w: %s:%d: %s", ErrEngineUnavailable, pc.conf.Host, pc.conf.Port, err)
	}
	pc.conn = conn
	log.Info().Str("host", pc.conf.Host).Int("port", pc.conf.Port).Msg("connected to engine")
	return nil
}

func (pc *pgConn) disconnect(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.conn == nil {
		return nil
	}
	err := pc.conn.Close(ctx)
	pc.conn = nil
	return err
}

func (pc *pgConn) ensure(ctx context.Context) (*pgx.Conn, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if err := pc.connectLocked(ctx); err != nil {
		return nil, err
	}
	return pc.conn, nil
}

// fetchTable runs a query and renders its result set the way the API
// presents tabular data - a pipe-separated header, a dash rule and one
// line per row.
func (pc *pgConn) fetchTable(ctx context.Context, query string) (string, time.Duration, error) {
	conn, err := pc.ensure(ctx)
	if err != nil {
		return "", 0, err
	}
	t0 := time.Now()
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return "", 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}
	lines := make([]string, 0, 16)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return "", 0, fmt.Errorf("failed to read query results: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprintf("%v", v)
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("failed to read query results: %w", err)
	}
	elapsed := time.Since(t0)

	if len(lines) == 0 {
		return "No results returned", elapsed, nil
	}
	header := strings.Join(columns, " | ")
	table := make([]string, 0, len(lines)+2)
	table = append(table, header, strings.Repeat("-", len(header)))
	table = append(table, lines...)
	return strings.Join(table, "\n"), elapsed, nil
}

// fetchPlan runs EXPLAIN (or EXPLAIN ANALYZE) and joins the plan lines.
func (pc *pgConn) fetchPlan(ctx context.Context, explainCmd, query string) (string, time.Duration, error) {
	conn, err := pc.ensure(ctx)
	if err != nil {
		return "", 0, err
	}
	t0 := time.Now()
	rows, err := conn.Query(ctx, explainCmd+" "+query)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch query plan: %w", err)
	}
	defer rows.Close()

	planLines := make([]string, 0, 16)
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", 0, fmt.Errorf("failed to read query plan: %w", err)
		}
		planLines = append(planLines, line)
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("failed to read query plan: %w", err)
	}
	return strings.Join(planLines, "\n"), time.Since(t0), nil
}

func (pc *pgConn) serverVersion(ctx context.Context) (string, error) {
	conn, err := pc.ensure(ctx)
	if err != nil {
		return "", err
	}
	var full string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&full); err != nil {
		return "", fmt.Errorf("failed to fetch server version: %w", err)
	}
	parts := strings.Fields(full)
	if len(parts) >= 2 {
		return parts[0] + " " + parts[1], nil
	}
	return full, nil
}

func millis(d time.Duration) *float64 {
	v := float64(d.Microseconds()) / 1000.0
	return &v
}
