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
	"context"
	"fmt"

	"github.com/blinklabs-io/quorum/indexer"
)

const (
	BackendCbor = "cbor"
	BackendPlan = "plan"
)

// Backend turns drafts into transactions. One is chosen when the Builder is
// constructed.
type Backend interface {
	Name() string
	Assemble(
		ctx context.Context,
		draft *Draft,
		pparams indexer.ProtocolParams,
	) (*Assembled, error)
}

// NewBackend returns the backend registered under name
func NewBackend(name string, opts ...CborBackendOptionFunc) (Backend, error) {
	switch name {
	case BackendCbor, "":
		return NewCborBackend(opts...), nil
	case BackendPlan:
		return NewPlanBackend(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}
