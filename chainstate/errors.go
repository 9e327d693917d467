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

package chainstate

import (
	"errors"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/utxo"
)

var (
	ErrParameterNotRecoverable = errors.New("parameter not recoverable")
	ErrReferenceToken          = errors.New("reference token does not match record")
)

// ParameterNotRecoverableError reports an exhausted parameter search
type ParameterNotRecoverableError struct {
	Reason   string
	Tried    int
	PolicyId lcommon.Blake2b224
}

func (e *ParameterNotRecoverableError) Error() string {
	return fmt.Sprintf(
		"parameter not recoverable for policy %s after %d candidates: %s",
		e.PolicyId.String(),
		e.Tried,
		e.Reason,
	)
}

func (e *ParameterNotRecoverableError) Is(target error) bool {
	return target == ErrParameterNotRecoverable
}

// Warning describes an output skipped during reconstruction
type Warning struct {
	Err     error
	Address string
	Record  string
	Ref     utxo.OutputRef
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at %s: %v", w.Record, w.Ref.String(), w.Err)
}
