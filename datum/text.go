// Copyright 2026 Blink Labs Software
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

package datum

import "unicode/utf8"

// MaxTextBytes is the ledger's limit for a single transaction metadata string
const MaxTextBytes = 64

// TruncateText cuts s to at most n bytes without splitting a UTF-8 sequence
func TruncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ChunkText splits s into pieces of at most n bytes on UTF-8 boundaries.
// Long descriptions are carried in transaction metadata as such a list.
func ChunkText(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	var ret []string
	for len(s) > n {
		chunk := TruncateText(s, n)
		if chunk == "" {
			// a single rune wider than n
			_, size := utf8.DecodeRuneInString(s)
			chunk = s[:size]
		}
		ret = append(ret, chunk)
		s = s[len(chunk):]
	}
	if s != "" || len(ret) == 0 {
		ret = append(ret, s)
	}
	return ret
}
