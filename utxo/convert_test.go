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
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/mary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convertTestAddr = "addr_test1wqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg0tyy26"

func TestFromTransactionOutputAssets(t *testing.T) {
	addr, err := lcommon.NewAddress(convertTestAddr)
	require.NoError(t, err)
	multiAsset := lcommon.NewMultiAsset(
		map[lcommon.Blake2b224]map[cbor.ByteString]lcommon.MultiAssetTypeOutput{
			testPolicy: {
				cbor.NewByteString([]byte("vote")):  3,
				cbor.NewByteString([]byte("empty")): 0,
			},
		},
	)
	txOut := babbage.BabbageTransactionOutput{
		OutputAddress: addr,
		OutputAmount: mary.MaryTransactionOutputValue{
			Amount: 2_000_000,
			Assets: &multiAsset,
		},
	}
	ref := OutputRef{Index: 1}
	u := FromTransactionOutput(ref, txOut)
	assert.Equal(t, convertTestAddr, u.Address)
	assert.Equal(t, uint64(2_000_000), u.Lovelace)
	assert.Nil(t, u.DatumHash, "zero datum hash should be dropped")
	assert.Nil(t, u.Datum)
	require.Len(t, u.Assets, 1, "zero quantity assets are skipped")
	assert.Equal(t, testPolicy, u.Assets[0].PolicyId)
	assert.Equal(t, []byte("vote"), u.Assets[0].Name)
	assert.Equal(t, uint64(3), u.Assets[0].Quantity)
}

func TestFromCborInvalid(t *testing.T) {
	_, err := FromCbor(OutputRef{}, []byte{0xff, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding TxOut")
}
