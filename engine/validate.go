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
	"fmt"
	"regexp"
	"strings"
)

var (
	lineCommentRegexp  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRegexp = regexp.MustCompile(`(?s)/\*.*?\*/`)

	writeKeywords = []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
		"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	}

	writeKeywordRegexps = func() []*regexp.Regexp {
		ans := make([]*regexp.Regexp, len(writeKeywords))
		for i, kw := range writeKeywords {
			ans[i] = regexp.MustCompile(`\b` + kw + `\b`)
		}
		return ans
	}()
)

// ValidateReadOnly rejects queries which are not a single read-only
// statement. Comments are stripped before the keyword scan but string
// literals are not masked, so a write keyword inside a literal is a known
// false positive of the scan - callers should phrase such literals
// differently.
func ValidateReadOnly(query string) error {
	stripped := strings.TrimSpace(query)
	stripped = strings.TrimSuffix(stripped, ";")
	if strings.Contains(stripped, ";") {
		return fmt.Errorf("%w: multiple SQL statements not allowed", ErrInvalidQuery)
	}

	upper := strings.ToUpper(stripped)
	upper = lineCommentRegexp.ReplaceAllString(upper, "")
	upper = blockCommentRegexp.ReplaceAllString(upper, "")

	for i, re := range writeKeywordRegexps {
		if re.MatchString(upper) {
			return fmt.Errorf(
				"%w: query contains write operation %s", ErrInvalidQuery, writeKeywords[i])
		}
	}
	return nil
}
