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
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Database is the durable store of the service: request audit log, result
// cache, latency log and hourly performance stats. All writes are single
// statement transactions; the store survives process restarts.
type Database struct {
	db *sql.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open working database: %w", err)
	}
	return &Database{db: db}, nil
}

func (database *Database) Close() error {
	if database == nil || database.db == nil {
		return nil
	}
	return database.db.Close()
}

func (database *Database) createUserRequestsTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE user_requests (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"client_ip TEXT NOT NULL, " +
			"fingerprint TEXT NOT NULL, " +
			"created INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `user_requests`")
	return nil
}

func (database *Database) createQueryCacheTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE query_cache (" +
			"fingerprint TEXT PRIMARY KEY NOT NULL, " +
			"query TEXT NOT NULL, " +
			"result BLOB NOT NULL, " +
			"created INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `query_cache`")
	return nil
}

func (database *Database) createQueryLogTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE query_log (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"query_hash TEXT NOT NULL, " +
			"engine TEXT NOT NULL, " +
			"latency_ms FLOAT NOT NULL, " +
			"created INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `query_log`")
	return nil
}

func (database *Database) createPerformanceStatsTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE performance_stats (" +
			"engine TEXT NOT NULL, " +
			"hour INTEGER NOT NULL, " +
			"row_count INTEGER NOT NULL, " +
			"distinct_queries INTEGER NOT NULL, " +
			"min_ms FLOAT NOT NULL, " +
			"p25_ms FLOAT NOT NULL, " +
			"p50_ms FLOAT NOT NULL, " +
			"p75_ms FLOAT NOT NULL, " +
			"p95_ms FLOAT NOT NULL, " +
			"p99_ms FLOAT NOT NULL, " +
			"max_ms FLOAT NOT NULL, " +
			"mean_ms FLOAT NOT NULL, " +
			"PRIMARY KEY (engine, hour)" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `performance_stats`")
	return nil
}

func (database *Database) tableExists(tn string) (bool, error) {
	ans := database.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

func (database *Database) Init() error {
	tables := map[string]func() error{
		"user_requests":     database.createUserRequestsTable,
		"query_cache":       database.createQueryCacheTable,
		"query_log":         database.createQueryLogTable,
		"performance_stats": database.createPerformanceStatsTable,
	}
	for tn, create := range tables {
		ex, err := database.tableExists(tn)
		if err != nil {
			return fmt.Errorf("failed to init table %s: %w", tn, err)
		}
		if ex {
			log.Info().Str("table", tn).Msg("table already exists")
			continue
		}
		if err := create(); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tn, err)
		}
	}
	return nil
}
