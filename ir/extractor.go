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
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	filePrefix  = "pgx_lower_"
	fileSuffix  = ".mlir"
	filePattern = filePrefix + "*" + fileSuffix
)

// Stage is one named step of the engine's query-lowering pipeline,
// collected from the staging directory after a single execution.
// Stages must not outlive the execution which produced them.
type Stage struct {
	Label    string `json:"stage"`
	Filename string `json:"filename"`
	Content  string `json:"content"`

	order int
}

// Extractor reads per-stage IR dump files which the pgx-lower engine
// deposits into a shared staging directory during one query execution.
// The staging directory tolerates a single writer only, so the extractor
// must always be driven from under the execution gate.
type Extractor struct {
	Dir string
}

func NewExtractor(dir string) *Extractor {
	return &Extractor{Dir: dir}
}

func (ex *Extractor) EnsureDir() error {
	return os.MkdirAll(ex.Dir, 0755)
}

// Purge removes all stage files so that artifacts of a crashed or
// preceding run cannot be attributed to the next one. It returns the
// number of removed files.
func (ex *Extractor) Purge() int {
	matches, err := filepath.Glob(filepath.Join(ex.Dir, filePattern))
	if err != nil {
		log.Warn().Err(err).Str("dir", ex.Dir).Msg("failed to list staging directory")
		return 0
	}
	var removed int
	for _, fp := range matches {
		if err := os.Remove(fp); err != nil {
			log.Warn().Err(err).Str("file", fp).Msg("failed to remove stale IR dump")
			continue
		}
		removed++
	}
	return removed
}

// ParseStageName recovers the raw stage identifier from a dump filename:
// the fixed prefix and suffix are stripped, then the trailing
// `_<8 digits>_<6 digits>` uniqueness token.
func ParseStageName(filename string) string {
	name := strings.TrimPrefix(filename, filePrefix)
	name = strings.TrimSuffix(name, fileSuffix)

	parts := strings.Split(name, "_")
	if len(parts) >= 3 {
		date := parts[len(parts)-2]
		tm := parts[len(parts)-1]
		if len(date) == 8 && isDigits(date) && len(tm) == 6 && isDigits(tm) {
			return strings.Join(parts[:len(parts)-2], "_")
		}
	}
	return name
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CollectStages lists stage files in modification-time order (the only
// ordering signal the engine provides), reads them and normalizes the
// stage identifiers. Suppressed phases are dropped; unknown phases pass
// through and sort last. A missing or empty staging directory yields an
// empty list, not an error.
func (ex *Extractor) CollectStages() ([]Stage, error) {
	matches, err := filepath.Glob(filepath.Join(ex.Dir, filePattern))
	if err != nil {
		return nil, err
	}
	type fileEntry struct {
		path    string
		modTime int64
	}
	entries := make([]fileEntry, 0, len(matches))
	for _, fp := range matches {
		info, err := os.Stat(fp)
		if err != nil {
			log.Warn().Err(err).Str("file", fp).Msg("failed to stat IR dump")
			continue
		}
		entries = append(entries, fileEntry{path: fp, modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime < entries[j].modTime
	})

	stages := make([]Stage, 0, len(entries))
	for _, entry := range entries {
		content, err := os.ReadFile(entry.path)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.path).Msg("failed to read IR dump")
			continue
		}
		filename := filepath.Base(entry.path)
		rawName := ParseStageName(filename)
		label, order, keep := NormalizePhaseName(rawName)
		if !keep {
			continue
		}
		stages = append(stages, Stage{
			Label:    label,
			Filename: filename,
			Content:  string(content),
			order:    order,
		})
	}
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].order < stages[j].order
	})
	return stages, nil
}
