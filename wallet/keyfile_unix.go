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

//go:build !windows

package wallet

import (
	"fmt"
	"io/fs"
)

// group and other bits that must be clear on a signing key
const insecureKeyModeMask fs.FileMode = 0o077

// checkKeyFileMode rejects key files readable or writable beyond the owner.
// It takes the FileInfo of the opened file so the mode cannot change between
// check and read.
func checkKeyFileMode(path string, info fs.FileInfo) error {
	mode := info.Mode().Perm()
	if mode&insecureKeyModeMask == 0 {
		return nil
	}
	return fmt.Errorf(
		"%w: %s has mode %04o, expected no group or other access",
		ErrInsecureFileMode,
		path,
		mode,
	)
}
