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

package contract

import (
	"errors"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

var ErrIdentityMismatch = errors.New("policy identity mismatch")

// IdentityMismatchError reports a policy ID that disagrees with the one
// derived from its parameter. Source names where Expected came from.
type IdentityMismatchError struct {
	Source   string
	Expected lcommon.Blake2b224
	Derived  lcommon.Blake2b224
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf(
		"policy identity mismatch: %s has %s, derived %s",
		e.Source,
		e.Expected.String(),
		e.Derived.String(),
	)
}

func (e *IdentityMismatchError) Is(target error) bool {
	return target == ErrIdentityMismatch
}

// CheckIdentity returns an *IdentityMismatchError when expected and derived differ
func CheckIdentity(source string, expected, derived lcommon.Blake2b224) error {
	if expected != derived {
		return &IdentityMismatchError{
			Source:   source,
			Expected: expected,
			Derived:  derived,
		}
	}
	return nil
}
