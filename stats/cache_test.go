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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyros-dev/pgx-lower-api/engine"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

func latencyPtr(v float64) *float64 {
	return &v
}

func TestCacheRoundtrip(t *testing.T) {
	db := testDatabase(t)
	stored := engine.QueryResult{
		Engine:    "pgx-lower-ir",
		Version:   "pgx-lower 0.1.0 (PostgreSQL 16.2)",
		LatencyMs: 12.34,
		Outputs: []engine.QueryOutput{
			{Title: "Optimized Results", Content: "a | b\n1 | 2", Latency: latencyPtr(10.5)},
			{Title: "IR: JIT Compilation", Content: "module {}"},
		},
	}
	query := "SELECT a, b FROM t"
	fp := Fingerprint(query)
	require.NoError(t, db.CacheResult(fp, query, stored))

	loaded, err := db.GetCachedResult(fp)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, stored, *loaded)
}

func TestCacheMiss(t *testing.T) {
	db := testDatabase(t)
	loaded, err := db.GetCachedResult(Fingerprint("SELECT 1"))
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCacheReplacesOnSameFingerprint(t *testing.T) {
	db := testDatabase(t)
	query := "SELECT 1"
	fp := Fingerprint(query)
	require.NoError(t, db.CacheResult(fp, query, engine.QueryResult{Engine: "postgres"}))
	require.NoError(t, db.CacheResult(fp, query, engine.QueryResult{Engine: "pgx-lower"}))

	loaded, err := db.GetCachedResult(fp)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "pgx-lower", loaded.Engine)

	queries, err := db.GetCachedQueries()
	require.NoError(t, err)
	assert.Len(t, queries, 1)
}

func TestGetCachedQueriesListsAllEntries(t *testing.T) {
	db := testDatabase(t)
	for _, q := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		require.NoError(t, db.CacheResult(Fingerprint(q), q, engine.QueryResult{Engine: "postgres"}))
	}
	queries, err := db.GetCachedQueries()
	require.NoError(t, err)
	require.Len(t, queries, 3)
	for i, q := range queries {
		assert.Equal(t, Fingerprint(q.Query), q.Fingerprint, "entry %d", i)
	}
}
