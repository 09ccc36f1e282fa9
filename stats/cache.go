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
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zyros-dev/pgx-lower-api/engine"
)

// GetCachedResult looks up a previously computed result by query
// fingerprint. A miss is reported as (nil, nil).
func (database *Database) GetCachedResult(fingerprint string) (*engine.QueryResult, error) {
	row := database.db.QueryRow(
		"SELECT result FROM query_cache WHERE fingerprint = ?", fingerprint)
	var blob []byte
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil

	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch cached result: %w", err)
	}
	var result engine.QueryResult
	if err := msgpack.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, nil
}

// CacheResult upserts the serialized result for a fingerprint. A later
// execution of the same query replaces the stored row, which lets the
// result format evolve without any cache invalidation logic.
func (database *Database) CacheResult(
	fingerprint string,
	query string,
	result engine.QueryResult,
) error {
	blob, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for caching: %w", err)
	}
	_, err = database.db.Exec(
		"INSERT OR REPLACE INTO query_cache (fingerprint, query, result, created) "+
			"VALUES (?, ?, ?, ?)",
		fingerprint,
		query,
		blob,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}
	return nil
}

// CachedQuery is one entry of the "queries ever seen" log.
type CachedQuery struct {
	Fingerprint string
	Query       string
}

// GetCachedQueries lists all cached query texts, oldest first. The
// benchmark executor replays these against an engine.
func (database *Database) GetCachedQueries() ([]CachedQuery, error) {
	rows, err := database.db.Query(
		"SELECT fingerprint, query FROM query_cache ORDER BY created")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cached queries: %w", err)
	}
	defer rows.Close()
	ans := make([]CachedQuery, 0, 100)
	for rows.Next() {
		var cq CachedQuery
		if err := rows.Scan(&cq.Fingerprint, &cq.Query); err != nil {
			return nil, fmt.Errorf("failed to fetch cached queries: %w", err)
		}
		ans = append(ans, cq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch cached queries: %w", err)
	}
	return ans, nil
}
