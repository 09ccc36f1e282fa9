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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sample := []float64{10, 20, 30, 40, 100}
	assert.Equal(t, 30.0, Percentile(sample, 0.50))
	assert.Equal(t, 20.0, Percentile(sample, 0.25))
	assert.InDelta(t, 88.0, Percentile(sample, 0.95), 0.0001)
	assert.Equal(t, 10.0, Percentile(sample, 0))
	assert.Equal(t, 100.0, Percentile(sample, 1))
}

func TestPercentileEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 0.99))
	assert.Equal(t, 15.0, Percentile([]float64{10, 20}, 0.5))
}

func addLogRows(t *testing.T, db *Database, eng string, created time.Time, latencies ...float64) {
	t.Helper()
	for i, ms := range latencies {
		require.NoError(t, db.AddLatencyRecord(LatencyRecord{
			QueryHash: Fingerprint(string(rune('a' + i))),
			Engine:    eng,
			LatencyMs: ms,
			Created:   created,
		}))
	}
}

func TestComputeHourlyStats(t *testing.T) {
	db := testDatabase(t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	addLogRows(t, db, "pgx-lower-ir", hour.Add(5*time.Minute), 10, 20, 30, 40, 100)

	updated, err := db.ComputeHourlyStats()
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	buckets, err := db.RecentStats(10)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, "pgx-lower-ir", b.Engine)
	assert.Equal(t, hour.Unix(), b.Hour)
	assert.Equal(t, 5, b.RowCount)
	assert.Equal(t, 5, b.DistinctQueries)
	assert.Equal(t, 10.0, b.MinMs)
	assert.Equal(t, 100.0, b.MaxMs)
	assert.Equal(t, 30.0, b.P50Ms)
	assert.InDelta(t, 88.0, b.P95Ms, 0.0001)
	assert.Equal(t, 40.0, b.MeanMs)
}

func TestComputeHourlyStatsIsIdempotent(t *testing.T) {
	db := testDatabase(t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	addLogRows(t, db, "postgres", hour.Add(time.Minute), 5, 15, 25)

	_, err := db.ComputeHourlyStats()
	require.NoError(t, err)
	first, err := db.RecentStats(10)
	require.NoError(t, err)

	_, err = db.ComputeHourlyStats()
	require.NoError(t, err)
	second, err := db.RecentStats(10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeHourlyStatsConvergesPartialBucket(t *testing.T) {
	db := testDatabase(t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	addLogRows(t, db, "postgres", hour.Add(time.Minute), 10, 20)

	_, err := db.ComputeHourlyStats()
	require.NoError(t, err)

	// more records arrive within the already summarized hour
	addLogRows(t, db, "postgres", hour.Add(30*time.Minute), 30, 40)
	_, err = db.ComputeHourlyStats()
	require.NoError(t, err)

	buckets, err := db.RecentStats(10)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 4, buckets[0].RowCount)
	assert.Equal(t, 25.0, buckets[0].MeanMs)
}

func TestComputeHourlyStatsSplitsEnginesAndHours(t *testing.T) {
	db := testDatabase(t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	addLogRows(t, db, "postgres", hour.Add(time.Minute), 10)
	addLogRows(t, db, "pgx-lower", hour.Add(time.Minute), 20)
	addLogRows(t, db, "postgres", hour.Add(time.Hour), 30)

	updated, err := db.ComputeHourlyStats()
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	buckets, err := db.RecentStats(10)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	// newest hour first, engines alphabetical within an hour
	assert.Equal(t, "postgres", buckets[0].Engine)
	assert.Equal(t, hour.Add(time.Hour).Unix(), buckets[0].Hour)
	assert.Equal(t, "pgx-lower", buckets[1].Engine)
	assert.Equal(t, "postgres", buckets[2].Engine)
}

func TestComputeHourlyStatsRecoversSkippedHour(t *testing.T) {
	db := testDatabase(t)
	older := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	addLogRows(t, db, "postgres", older.Add(time.Minute), 10, 20)
	addLogRows(t, db, "postgres", newer.Add(time.Minute), 30, 40)

	// an interrupted run left the newer bucket stored but not the older
	// one, so the plain MAX(hour) watermark would skip it forever
	require.NoError(t, db.upsertBucket(summarizeGroup(
		bucketKey{engine: "postgres", hour: newer.Unix()},
		[]logRow{
			{queryHash: "a", engine: "postgres", latencyMs: 30, created: newer.Add(time.Minute).Unix()},
			{queryHash: "b", engine: "postgres", latencyMs: 40, created: newer.Add(time.Minute).Unix()},
		},
	)))

	_, err := db.ComputeHourlyStats()
	require.NoError(t, err)

	buckets, err := db.RecentStats(10)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	hours := []int64{buckets[0].Hour, buckets[1].Hour}
	assert.Contains(t, hours, older.Unix())
	assert.Contains(t, hours, newer.Unix())
}

func TestClearPerformanceStatsKeepsLog(t *testing.T) {
	db := testDatabase(t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	addLogRows(t, db, "postgres", hour.Add(time.Minute), 10, 20)

	_, err := db.ComputeHourlyStats()
	require.NoError(t, err)
	require.NoError(t, db.ClearPerformanceStats())

	buckets, err := db.RecentStats(10)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	// re-aggregation restores the bucket from the intact log
	updated, err := db.ComputeHourlyStats()
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	total, distinct, err := db.QueryLogCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, distinct)
}
