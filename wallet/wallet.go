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

// Package wallet is the capability boundary for spending: listing the
// wallet's outputs, signing assembled transactions, and submitting them
package wallet

import (
	"context"
	"errors"

	"github.com/blinklabs-io/quorum/utxo"
)

var (
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrUnsupportedKey   = errors.New("unsupported key type")
	ErrNoSubmitter      = errors.New("no submitter configured")
)

// Wallet is what transaction building needs from whoever holds the keys
type Wallet interface {
	// Addresses returns the wallet's bech32 addresses, change address first
	Addresses(ctx context.Context) ([]string, error)
	// Utxos lists the wallet's spendable outputs
	Utxos(ctx context.Context) ([]utxo.Utxo, error)
	// SignTx adds the wallet's witnesses to a full transaction in CBOR
	SignTx(ctx context.Context, txCbor []byte) ([]byte, error)
	// SubmitTx submits a signed transaction and returns its hash
	SubmitTx(ctx context.Context, txCbor []byte) (string, error)
}

// Submitter sends signed transactions to the network
type Submitter interface {
	SubmitTx(ctx context.Context, txCbor []byte) (string, error)
}
