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

package event

import "time"

const (
	// TxSubmittedEventType is published after a signed transaction was
	// accepted by the submitter
	TxSubmittedEventType = EventType("txbuilder.submitted")
	// DecodeSkippedEventType is published when chain-state reconstruction
	// skips an output whose datum does not decode
	DecodeSkippedEventType = EventType("chainstate.decode_skipped")
	// TallyEventType is published for every computed tally
	TallyEventType = EventType("chainstate.tally")
)

// TxKind names the transaction shape that was submitted
type TxKind string

const (
	TxKindIssue TxKind = "issue"
	TxKindClaim TxKind = "claim"
	TxKindVote  TxKind = "vote"
)

type TxSubmittedEvent struct {
	SubmittedAt time.Time
	TxHash      string
	Kind        TxKind
	// PolicyId is the hex policy of the proposal the transaction acts on
	PolicyId string
	// BaseAssetName is the hex base name shared by the proposal tokens
	BaseAssetName string
	// ParamRef is the one-time output reference, set for issue transactions
	ParamRef string
}

type DecodeSkippedEvent struct {
	Address string
	OutRef  string
	Record  string
	Reason  string
}

type TallyEvent struct {
	ObservedAt    time.Time
	PolicyId      string
	BaseAssetName string
	Yes           uint64
	No            uint64
	Skipped       uint64
}
