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
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// FromCbor decodes a CBOR-encoded transaction output into a Utxo
func FromCbor(ref OutputRef, txOutCbor []byte) (Utxo, error) {
	txOut, err := ledger.NewTransactionOutputFromCbor(txOutCbor)
	if err != nil {
		prefix := txOutCbor
		if len(prefix) > 60 {
			prefix = prefix[:60]
		}
		return Utxo{}, fmt.Errorf(
			"decoding TxOut %s: %w (data[:%d]=%x)",
			ref.String(),
			err,
			len(prefix),
			prefix,
		)
	}
	return FromTransactionOutput(ref, txOut), nil
}

// FromTransactionOutput converts a ledger transaction output into a Utxo
func FromTransactionOutput(
	ref OutputRef,
	txOut lcommon.TransactionOutput,
) Utxo {
	ret := Utxo{
		Ref:      ref,
		Address:  txOut.Address().String(),
		Lovelace: txOut.Amount(),
	}
	// Outputs without a datum report a zero hash
	if dh := txOut.DatumHash(); dh != nil && *dh != (lcommon.Blake2b256{}) {
		ret.DatumHash = dh.Bytes()
	}
	if d := txOut.Datum(); d != nil {
		ret.Datum = d.Cbor()
	}
	if multiAsset := txOut.Assets(); multiAsset != nil {
		ret.Assets = convertMultiAsset(multiAsset)
	}
	return ret
}

func convertMultiAsset(
	multiAsset *lcommon.MultiAsset[lcommon.MultiAssetTypeOutput],
) []Asset {
	var assets []Asset //nolint:prealloc
	for _, policyId := range multiAsset.Policies() {
		for _, assetName := range multiAsset.Assets(policyId) {
			amount := multiAsset.Asset(policyId, assetName)
			if amount == 0 {
				continue
			}
			assets = append(assets, Asset{
				PolicyId: policyId,
				Name:     assetName,
				Quantity: amount,
			})
		}
	}
	return assets
}
