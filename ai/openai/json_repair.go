// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import "regexp"

var (
	// `, asset_ref":` or `{asset_ref:` after an object start or separator
	halfQuotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)":`)
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// repairJSON attempts to fix common JSON formatting issues from LLM responses:
// keys missing their opening quote, keys missing both quotes, and trailing
// commas before a closing brace or bracket.
// The patterns are not string aware, so a string value containing `, word:`
// is rewritten too.
func repairJSON(s string) string {
	s = halfQuotedKey.ReplaceAllString(s, `$1"$2":`)
	s = unquotedKey.ReplaceAllString(s, `$1"$2":`)
	return trailingComma.ReplaceAllString(s, `$1`)
}
