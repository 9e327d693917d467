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

package txbuilder

import (
	"errors"
	"fmt"
)

var (
	ErrNotAMember        = errors.New("wallet credential is not a distribution member")
	ErrNoVotingToken     = errors.New("wallet holds no voting token for the proposal")
	ErrNoDistribution    = errors.New("no distribution output for the proposal")
	ErrNotSignable       = errors.New("transaction plan cannot be signed locally")
	ErrUnknownBackend    = errors.New("unknown transaction backend")
	ErrNoWalletAddress   = errors.New("wallet reported no addresses")
	ErrUnbalanced        = errors.New("transaction does not balance")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnsupportedLang   = errors.New("plutus language not supported")
	ErrTokenConservation = errors.New("user token conservation violated")
)

// ConservationError reports user tokens that would be created or lost by a claim
type ConservationError struct {
	Before uint64
	After  uint64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf(
		"user token conservation violated: %d before, %d after",
		e.Before,
		e.After,
	)
}

func (e *ConservationError) Is(target error) bool {
	return target == ErrTokenConservation
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
