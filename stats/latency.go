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
	"fmt"
	"time"
)

// LatencyRecord is one append-only row of the latency log, written for
// every non-cached execution.
type LatencyRecord struct {
	QueryHash string
	Engine    string
	LatencyMs float64
	Created   time.Time
}

func (database *Database) AddLatencyRecord(rec LatencyRecord) error {
	created := rec.Created
	if created.IsZero() {
		created = time.Now()
	}
	_, err := database.db.Exec(
		"INSERT INTO query_log (query_hash, engine, latency_ms, created) "+
			"VALUES (?, ?, ?, ?)",
		rec.QueryHash,
		rec.Engine,
		rec.LatencyMs,
		created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add latency record: %w", err)
	}
	return nil
}

// AddUserRequest appends a row to the request audit log.
func (database *Database) AddUserRequest(clientIP, fingerprint string) error {
	_, err := database.db.Exec(
		"INSERT INTO user_requests (client_ip, fingerprint, created) VALUES (?, ?, ?)",
		clientIP,
		fingerprint,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add user request record: %w", err)
	}
	return nil
}

// QueryLogCounts reports the total and distinct-query sizes of the
// latency log.
func (database *Database) QueryLogCounts() (total int, distinct int, err error) {
	row := database.db.QueryRow("SELECT COUNT(*) FROM query_log")
	if err = row.Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count query log: %w", err)
	}
	row = database.db.QueryRow("SELECT COUNT(DISTINCT query_hash) FROM query_log")
	if err = row.Scan(&distinct); err != nil {
		return 0, 0, fmt.Errorf("failed to count query log: %w", err)
	}
	return total, distinct, nil
}

// ClearPerformanceStats removes all hourly buckets. The next aggregation
// run re-derives them from the append-only latency log.
func (database *Database) ClearPerformanceStats() error {
	if _, err := database.db.Exec("DELETE FROM performance_stats"); err != nil {
		return fmt.Errorf("failed to clear performance stats: %w", err)
	}
	return nil
}
