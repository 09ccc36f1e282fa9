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

package ir

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStageFile(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	fp := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(fp, []byte(content), 0644))
	require.NoError(t, os.Chtimes(fp, mtime, mtime))
}

func TestParseStageName(t *testing.T) {
	assert.Equal(
		t, "RELALG_LOWER",
		ParseStageName("pgx_lower_RELALG_LOWER_20240101_120000.mlir"))
	assert.Equal(
		t, "DB_LOWER",
		ParseStageName("pgx_lower_DB_LOWER_20240101_120005.mlir"))
}

func TestParseStageNameWithoutUniquenessToken(t *testing.T) {
	assert.Equal(t, "JIT", ParseStageName("pgx_lower_JIT.mlir"))
}

func TestParseStageNameNonNumericSuffix(t *testing.T) {
	// the trailing token is stripped only when it matches the
	// 8-digit date + 6-digit time shape
	assert.Equal(
		t, "STAGE_abcdefgh_123456",
		ParseStageName("pgx_lower_STAGE_abcdefgh_123456.mlir"))
}

func TestCollectStagesOrderedByModTime(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	now := time.Now()
	writeStageFile(t, dir, "pgx_lower_DB_LOWER_20240101_120005.mlir", "db", now.Add(-1*time.Second))
	writeStageFile(t, dir, "pgx_lower_RELALG_LOWER_20240101_120000.mlir", "relalg", now.Add(-2*time.Second))

	stages, err := ex.CollectStages()
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "RelAlg Lowering", stages[0].Label)
	assert.Equal(t, "relalg", stages[0].Content)
	assert.Equal(t, "DB Lowering", stages[1].Label)
	assert.Equal(t, "db", stages[1].Content)
}

func TestCollectStagesDropsOmittedPhases(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	now := time.Now()
	writeStageFile(
		t, dir,
		"pgx_lower_Phase 3c BEFORE: Standard -> LLVM_20240101_120000.mlir",
		"hidden", now.Add(-2*time.Second))
	writeStageFile(
		t, dir,
		"pgx_lower_JIT_20240101_120001.mlir",
		"jit", now.Add(-1*time.Second))

	stages, err := ex.CollectStages()
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "JIT Compilation", stages[0].Label)
}

func TestCollectStagesUnknownPhasePassesThroughAndSortsLast(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	now := time.Now()
	writeStageFile(
		t, dir,
		"pgx_lower_MYSTERY_PHASE_20240101_120000.mlir",
		"mystery", now.Add(-2*time.Second))
	writeStageFile(
		t, dir,
		"pgx_lower_JIT_20240101_120001.mlir",
		"jit", now.Add(-1*time.Second))

	stages, err := ex.CollectStages()
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "JIT Compilation", stages[0].Label)
	assert.Equal(t, "MYSTERY_PHASE", stages[1].Label)
}

func TestCollectStagesUnknownPhasesKeepModTimeOrder(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	now := time.Now()
	writeStageFile(t, dir, "pgx_lower_SECOND_20240101_120001.mlir", "b", now.Add(-1*time.Second))
	writeStageFile(t, dir, "pgx_lower_FIRST_20240101_120000.mlir", "a", now.Add(-2*time.Second))

	stages, err := ex.CollectStages()
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "FIRST", stages[0].Label)
	assert.Equal(t, "SECOND", stages[1].Label)
}

func TestCollectStagesIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644))

	stages, err := ex.CollectStages()
	require.NoError(t, err)
	assert.Empty(t, stages)
}

func TestCollectStagesMissingDir(t *testing.T) {
	ex := NewExtractor(filepath.Join(t.TempDir(), "does-not-exist"))
	stages, err := ex.CollectStages()
	assert.NoError(t, err)
	assert.Empty(t, stages)
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(dir)
	now := time.Now()
	writeStageFile(t, dir, "pgx_lower_JIT_20240101_120000.mlir", "jit", now)
	writeStageFile(t, dir, "pgx_lower_DB_LOWER_20240101_120001.mlir", "db", now)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "keepme.txt"), []byte("x"), 0644))

	assert.Equal(t, 2, ex.Purge())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keepme.txt", entries[0].Name())
}

func TestNormalizePhaseName(t *testing.T) {
	label, order, keep := NormalizePhaseName("RELALG_LOWER")
	assert.True(t, keep)
	assert.Equal(t, "RelAlg Lowering", label)
	assert.Less(t, order, unknownPhaseOrder)

	_, _, keep = NormalizePhaseName("Phase 3b BEFORE: DB+DSA -> Standard")
	assert.False(t, keep)

	label, order, keep = NormalizePhaseName("SOMETHING_NEW")
	assert.True(t, keep)
	assert.Equal(t, "SOMETHING_NEW", label)
	assert.Equal(t, unknownPhaseOrder, order)
}
