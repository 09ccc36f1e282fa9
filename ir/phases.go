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

// unknownPhaseOrder makes phases missing from the lookup table sort after
// all known ones without being dropped.
const unknownPhaseOrder = 1000

type phaseInfo struct {
	display string
	order   int
	omit    bool
}

// phaseNameMap translates raw pgx-lower phase identifiers to stable
// display names and a canonical pipeline ordering. Phases marked omit are
// internal duplicates of the following dump and are suppressed entirely.
var phaseNameMap = map[string]phaseInfo{
	"AST_TRANSLATE": {display: "AST Translation", order: 10},

	"RELALG_LOWER":                 {display: "RelAlg Lowering", order: 20},
	"Phase 3a before optimization": {display: "RelAlg: Before Optimization", order: 21},
	"Phase 3a AFTER: RelAlg -> Optimised RelAlg": {display: "RelAlg: After Optimization", order: 22},
	"Phase 3a AFTER: RelAlg -> DB+DSA+Util":      {display: "DB+DSA+Util", order: 23},

	"DB_LOWER":                            {display: "DB Lowering", order: 30},
	"Phase 3b BEFORE: DB+DSA -> Standard": {omit: true},
	"After dsa standard pipeline pm1":     {display: "DSA Pipeline: Pass 1", order: 31},
	"After dsa standard pipeline pm2":     {display: "DSA Pipeline: Pass 2", order: 32},
	"After func pipeline":                 {display: "Function Pipeline", order: 33},

	"Phase 3c BEFORE: Standard -> LLVM": {omit: true},
	"Phase 3c AFTER: Standard -> LLVM":  {display: "Standard: After LLVM Lowering", order: 40},

	"JIT": {display: "JIT Compilation", order: 50},
}

// NormalizePhaseName maps a raw phase identifier to its display name and
// canonical order. Identifiers absent from the table pass through
// unchanged and sort last; the third return value is false for phases
// which must be omitted from output.
func NormalizePhaseName(rawName string) (string, int, bool) {
	info, ok := phaseNameMap[rawName]
	if !ok {
		return rawName, unknownPhaseOrder, true
	}
	if info.omit {
		return "", 0, false
	}
	return info.display, info.order, true
}
