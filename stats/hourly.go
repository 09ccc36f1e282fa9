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
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// HourlyBucket is the percentile summary of one engine's latencies
// within one wall-clock hour (UTC aligned).
type HourlyBucket struct {
	Engine          string  `json:"engine"`
	Hour            int64   `json:"hour"`
	RowCount        int     `json:"rowCount"`
	DistinctQueries int     `json:"distinctQueries"`
	MinMs           float64 `json:"minMs"`
	P25Ms           float64 `json:"p25Ms"`
	P50Ms           float64 `json:"p50Ms"`
	P75Ms           float64 `json:"p75Ms"`
	P95Ms           float64 `json:"p95Ms"`
	P99Ms           float64 `json:"p99Ms"`
	MaxMs           float64 `json:"maxMs"`
	MeanMs          float64 `json:"meanMs"`
}

// HourString formats the bucket's hour for display.
func (b HourlyBucket) HourString() string {
	return time.Unix(b.Hour, 0).UTC().Format("2006-01-02 15:00")
}

// Percentile computes the p-quantile (p in 0..1) of an ascending-sorted
// sample using linear interpolation between order statistics:
// rank = (n-1)*p, interpolated between the floor and ceil ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := float64(n-1) * p
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

type logRow struct {
	queryHash string
	engine    string
	latencyMs float64
	created   int64
}

type bucketKey struct {
	engine string
	hour   int64
}

// aggregationWindowStart finds where the next aggregation run must start
// reading the latency log: normally the latest summarized bucket's hour
// (so the newest, possibly partial bucket keeps converging), extended
// back to the oldest log record whose (engine, hour) bucket is missing.
func (database *Database) aggregationWindowStart() (int64, error) {
	var latest sql.NullInt64
	row := database.db.QueryRow("SELECT MAX(hour) FROM performance_stats")
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to find latest stats bucket: %w", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	since := latest.Int64

	var missing sql.NullInt64
	row = database.db.QueryRow(
		"SELECT MIN(ql.created - ql.created % 3600) FROM query_log AS ql " +
			"WHERE NOT EXISTS (" +
			"SELECT 1 FROM performance_stats AS ps " +
			"WHERE ps.engine = ql.engine AND ps.hour = ql.created - ql.created % 3600" +
			")",
	)
	if err := row.Scan(&missing); err != nil {
		return 0, fmt.Errorf("failed to find unsummarized log records: %w", err)
	}
	if missing.Valid && missing.Int64 < since {
		since = missing.Int64
	}
	return since, nil
}

// ComputeHourlyStats incrementally compacts the latency log into hourly
// percentile buckets. Records are re-read from the latest summarized
// bucket's hour start, so the newest (possibly partial) bucket converges
// with each run while completed earlier buckets are never recomputed.
// A run interrupted mid-write leaves holes behind the watermark; those
// are found explicitly and the window is extended back to cover them.
// The log is never mutated, which makes the whole run idempotent and
// safe to retry after a crash.
func (database *Database) ComputeHourlyStats() (int, error) {
	since, err := database.aggregationWindowStart()
	if err != nil {
		return 0, err
	}

	rows, err := database.db.Query(
		"SELECT query_hash, engine, latency_ms, created FROM query_log "+
			"WHERE created >= ? ORDER BY created",
		since,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read latency log: %w", err)
	}
	defer rows.Close()

	groups := make(map[bucketKey][]logRow)
	for rows.Next() {
		var rec logRow
		if err := rows.Scan(&rec.queryHash, &rec.engine, &rec.latencyMs, &rec.created); err != nil {
			return 0, fmt.Errorf("failed to read latency log: %w", err)
		}
		key := bucketKey{
			engine: rec.engine,
			hour:   rec.created - rec.created%3600,
		}
		groups[key] = append(groups[key], rec)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read latency log: %w", err)
	}

	// oldest hour first, so an interrupted run can never leave a stored
	// bucket newer than a missing one
	keys := make([]bucketKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].hour != keys[j].hour {
			return keys[i].hour < keys[j].hour
		}
		return keys[i].engine < keys[j].engine
	})

	var updated int
	for _, key := range keys {
		bucket := summarizeGroup(key, groups[key])
		if err := database.upsertBucket(bucket); err != nil {
			return updated, err
		}
		updated++
		log.Debug().
			Str("engine", key.engine).
			Str("hour", bucket.HourString()).
			Int("rows", bucket.RowCount).
			Msg("stored hourly stats bucket")
	}
	return updated, nil
}

func summarizeGroup(key bucketKey, recs []logRow) HourlyBucket {
	latencies := make([]float64, len(recs))
	var sum float64
	distinct := make(map[string]bool)
	for i, rec := range recs {
		latencies[i] = rec.latencyMs
		sum += rec.latencyMs
		distinct[rec.queryHash] = true
	}
	sort.Float64s(latencies)

	return HourlyBucket{
		Engine:          key.engine,
		Hour:            key.hour,
		RowCount:        len(recs),
		DistinctQueries: len(distinct),
		MinMs:           latencies[0],
		P25Ms:           Percentile(latencies, 0.25),
		P50Ms:           Percentile(latencies, 0.50),
		P75Ms:           Percentile(latencies, 0.75),
		P95Ms:           Percentile(latencies, 0.95),
		P99Ms:           Percentile(latencies, 0.99),
		MaxMs:           latencies[len(latencies)-1],
		MeanMs:          sum / float64(len(recs)),
	}
}

func (database *Database) upsertBucket(bucket HourlyBucket) error {
	_, err := database.db.Exec(
		"INSERT OR REPLACE INTO performance_stats "+
			"(engine, hour, row_count, distinct_queries, min_ms, p25_ms, p50_ms, p75_ms, "+
			"p95_ms, p99_ms, max_ms, mean_ms) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		bucket.Engine,
		bucket.Hour,
		bucket.RowCount,
		bucket.DistinctQueries,
		bucket.MinMs,
		bucket.P25Ms,
		bucket.P50Ms,
		bucket.P75Ms,
		bucket.P95Ms,
		bucket.P99Ms,
		bucket.MaxMs,
		bucket.MeanMs,
	)
	if err != nil {
		return fmt.Errorf("failed to store stats bucket: %w", err)
	}
	return nil
}

// RecentStats returns the most recent hourly buckets, newest first.
func (database *Database) RecentStats(limit int) ([]HourlyBucket, error) {
	rows, err := database.db.Query(
		"SELECT engine, hour, row_count, distinct_queries, min_ms, p25_ms, p50_ms, p75_ms, "+
			"p95_ms, p99_ms, max_ms, mean_ms "+
			"FROM performance_stats ORDER BY hour DESC, engine LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent stats: %w", err)
	}
	defer rows.Close()
	ans := make([]HourlyBucket, 0, limit)
	for rows.Next() {
		var b HourlyBucket
		err := rows.Scan(
			&b.Engine,
			&b.Hour,
			&b.RowCount,
			&b.DistinctQueries,
			&b.MinMs,
			&b.P25Ms,
			&b.P50Ms,
			&b.P75Ms,
			&b.P95Ms,
			&b.P99Ms,
			&b.MaxMs,
			&b.MeanMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent stats: %w", err)
		}
		ans = append(ans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch recent stats: %w", err)
	}
	return ans, nil
}
