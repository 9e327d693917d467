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

package utxo

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

const txIdSize = 32

var ErrInvalidOutputRef = errors.New("invalid output reference")

// OutputRef uniquely identifies a ledger output
type OutputRef struct {
	TxId  lcommon.Blake2b256
	Index uint32
}

// NewOutputRef builds an OutputRef from a hex transaction ID
func NewOutputRef(txIdHex string, index uint32) (OutputRef, error) {
	txId, err := hex.DecodeString(txIdHex)
	if err != nil {
		return OutputRef{}, fmt.Errorf(
			"%w: tx id hex: %w",
			ErrInvalidOutputRef,
			err,
		)
	}
	if len(txId) != txIdSize {
		return OutputRef{}, fmt.Errorf(
			"%w: tx id must be %d bytes, got %d",
			ErrInvalidOutputRef,
			txIdSize,
			len(txId),
		)
	}
	return OutputRef{
		TxId:  lcommon.NewBlake2b256(txId),
		Index: index,
	}, nil
}

// ParseOutputRef parses the "<tx hash>#<index>" form produced by String
func ParseOutputRef(s string) (OutputRef, error) {
	txIdHex, idxStr, ok := strings.Cut(s, "#")
	if !ok {
		return OutputRef{}, fmt.Errorf(
			"%w: expected <hash>#<index>, got %q",
			ErrInvalidOutputRef,
			s,
		)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return OutputRef{}, fmt.Errorf(
			"%w: output index: %w",
			ErrInvalidOutputRef,
			err,
		)
	}
	return NewOutputRef(txIdHex, uint32(idx))
}

func (r OutputRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxId.String(), r.Index)
}

// Asset is a quantity of a single native token
type Asset struct {
	Name     []byte
	Quantity uint64
	PolicyId lcommon.Blake2b224
}

// Unit returns the hex policy ID concatenated with the hex asset name
func (a Asset) Unit() string {
	return a.PolicyId.String() + hex.EncodeToString(a.Name)
}

// Utxo is an unspent output as seen by the wallet or an indexer
type Utxo struct {
	Address   string
	Assets    []Asset
	Datum     []byte
	DatumHash []byte
	Ref       OutputRef
	Lovelace  uint64
}

// HasSecondaryAssets reports whether the output carries anything besides lovelace
func (u Utxo) HasSecondaryAssets() bool {
	return u.AssetCount() > 0
}

// AssetCount returns the number of distinct native assets with a positive quantity
func (u Utxo) AssetCount() int {
	count := 0
	for _, a := range u.Assets {
		if a.Quantity > 0 {
			count++
		}
	}
	return count
}

// Quantity returns the amount of the given asset held by the output
func (u Utxo) Quantity(policyId lcommon.Blake2b224, name []byte) uint64 {
	var total uint64
	for _, a := range u.Assets {
		if a.PolicyId == policyId && bytes.Equal(a.Name, name) {
			total += a.Quantity
		}
	}
	return total
}

// HoldingAsset returns the outputs that hold a positive quantity of the given asset
func HoldingAsset(
	utxos []Utxo,
	policyId lcommon.Blake2b224,
	name []byte,
) []Utxo {
	var ret []Utxo
	for _, u := range utxos {
		if u.Quantity(policyId, name) > 0 {
			ret = append(ret, u)
		}
	}
	return ret
}
