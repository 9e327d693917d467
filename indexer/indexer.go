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

// Package indexer defines the read-only ledger query boundary
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/utxo"
)

var (
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrNotFound          = errors.New("not found")
)

// Indexer answers questions about current and historical ledger state.
// Implementations do not retry; callers decide.
type Indexer interface {
	// UtxosAt lists the unspent outputs currently held at a bech32 address.
	// An address that has never been used yields an empty list.
	UtxosAt(ctx context.Context, address string) ([]utxo.Utxo, error)
	// TxInputs returns the inputs spent by a confirmed transaction
	TxInputs(ctx context.Context, txHash lcommon.Blake2b256) ([]utxo.OutputRef, error)
	// TxTime returns the confirmation time of a transaction
	TxTime(ctx context.Context, txHash lcommon.Blake2b256) (time.Time, error)
	// ProtocolParams returns the current protocol parameters
	ProtocolParams(ctx context.Context) (ProtocolParams, error)
}

// ProtocolParams holds the protocol parameters used for transaction assembly
type ProtocolParams struct {
	CostModels          map[uint8][]int64
	MinFeeA             uint64
	MinFeeB             uint64
	CoinsPerUtxoByte    uint64
	MaxTxSize           uint64
	CollateralPercent   uint64
	MaxCollateralInputs uint64
	PriceMem            float64
	PriceStep           float64
	MaxTxExMem          uint64
	MaxTxExSteps        uint64
}

// RemoteUnavailableError wraps a failed or timed out remote call. It matches
// ErrRemoteUnavailable and unwraps to the underlying cause.
type RemoteUnavailableError struct {
	Err    error
	Op     string
	Target string
}

func (e *RemoteUnavailableError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("remote unavailable: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf(
		"remote unavailable: %s %s: %v",
		e.Op,
		e.Target,
		e.Err,
	)
}

func (e *RemoteUnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a *RemoteUnavailableError unless it already is one
// or it signals a definite not-found answer
func Unavailable(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &RemoteUnavailableError{Op: op, Target: target, Err: err}
}
