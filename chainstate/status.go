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

import "time"

type Status string

const (
	StatusActive     Status = "active"
	StatusApproved   Status = "approved"
	StatusNonBinding Status = "non-binding"
)

// ProposalStatus classifies a proposal. Before the deadline it is active;
// from the deadline on it is approved once votes reach required.
func ProposalStatus(now, deadline time.Time, votes, required uint64) Status {
	if now.Before(deadline) {
		return StatusActive
	}
	if votes >= required {
		return StatusApproved
	}
	return StatusNonBinding
}
