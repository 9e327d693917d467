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
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/event"
	"github.com/blinklabs-io/quorum/utxo"
)

// ExUnits is a script execution budget
type ExUnits struct {
	Mem   uint64
	Steps uint64
}

// Input is an output spent by the transaction. Redeemer is set for script
// inputs, which also need either Script or ScriptRef.
type Input struct {
	Utxo      utxo.Utxo
	Redeemer  []byte
	Script    *contract.Template
	ScriptRef *utxo.OutputRef
	// ScriptVersion is the language of a reference script
	ScriptVersion contract.PlutusVersion
}

func (i Input) isScript() bool {
	return i.Redeemer != nil
}

// MintAsset is a quantity to mint, or burn when negative
type MintAsset struct {
	Name     []byte
	Quantity int64
}

// Mint mints assets under a single Plutus policy
type Mint struct {
	Script   contract.Template
	Redeemer []byte
	Assets   []MintAsset
	PolicyId lcommon.Blake2b224
}

// Output is a payment. A Lovelace value below the ledger minimum is raised
// to that minimum. Datum is inline Plutus data CBOR.
type Output struct {
	Address  string
	Assets   []utxo.Asset
	Datum    []byte
	Lovelace uint64
}

// Draft describes a transaction independently of how it gets assembled
type Draft struct {
	Kind            event.TxKind
	Inputs          []Input
	ReferenceInputs []utxo.OutputRef
	Mints           []Mint
	Outputs         []Output
	Metadata        Metadata
	RequiredSigners []lcommon.Blake2b224
	// Funding lists wallet outputs available for fees, change and collateral
	Funding       []utxo.Utxo
	ChangeAddress string
	// ValidFrom and ValidTo are slots, zero when unbounded
	ValidFrom uint64
	ValidTo   uint64

	PolicyId      lcommon.Blake2b224
	BaseAssetName []byte
	ParamRef      *utxo.OutputRef
}

// hasScripts reports whether the draft needs redeemers and collateral
func (d *Draft) hasScripts() bool {
	for _, in := range d.Inputs {
		if in.isScript() {
			return true
		}
	}
	return len(d.Mints) > 0
}

func (d *Draft) inputRefs() []utxo.OutputRef {
	ret := make([]utxo.OutputRef, 0, len(d.Inputs))
	for _, in := range d.Inputs {
		ret = append(ret, in.Utxo.Ref)
	}
	return ret
}

// Assembled is a draft turned into a concrete artifact by a Backend
type Assembled struct {
	Draft   *Draft
	Backend string
	// TxCbor is the unsigned transaction, nil when the backend emits a plan
	TxCbor []byte
	// Plan is the JSON description of the transaction
	Plan   []byte
	TxHash string
	Fee    uint64
}

// Signable reports whether the artifact can be signed and submitted locally
func (a *Assembled) Signable() bool {
	return a.TxCbor != nil
}
