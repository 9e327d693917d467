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
	"errors"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = lcommon.NewBlake2b224(
	[]byte("0123456789abcdef0123456789ab"),
)

func testUtxo(idx uint32, lovelace uint64, assets int) Utxo {
	u := Utxo{
		Ref:      OutputRef{TxId: lcommon.NewBlake2b256(make([]byte, 32)), Index: idx},
		Lovelace: lovelace,
	}
	for i := range assets {
		u.Assets = append(u.Assets, Asset{
			PolicyId: testPolicy,
			Name:     []byte{byte(i)},
			Quantity: 1,
		})
	}
	return u
}

func TestSelectOnePrefersPureOutput(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 10_000_000, 2),
		testUtxo(1, 10_000_000, 1),
		testUtxo(2, 10_000_000, 3),
		testUtxo(3, 10_000_000, 0),
		testUtxo(4, 10_000_000, 1),
	}
	for seed := range uint64(32) {
		s := NewSelector(WithSeed(seed))
		got, err := s.SelectOne(utxos, 5_000_000, true)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), got.Ref.Index)
	}
}

func TestSelectOneFewestAssetsFallback(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 10_000_000, 3),
		testUtxo(1, 10_000_000, 1),
		testUtxo(2, 10_000_000, 2),
	}
	s := NewSelector(WithSeed(7))
	got, err := s.SelectOne(utxos, 1_000_000, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Ref.Index)
}

func TestSelectOneIgnoresUndersized(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 1_000_000, 0),
		testUtxo(1, 8_000_000, 1),
	}
	s := NewSelector(WithSeed(1))
	got, err := s.SelectOne(utxos, 5_000_000, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Ref.Index)
}

func TestSelectOneInsufficientFunds(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 1_000_000, 0),
		testUtxo(1, 3_000_000, 0),
	}
	s := NewSelector()
	_, err := s.SelectOne(utxos, 5_000_000, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	var ife *InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, uint64(5_000_000), ife.Required)
	assert.Equal(t, uint64(3_000_000), ife.Available)
}

func TestSelectOneTieBreakIsNotAlwaysFirst(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 10_000_000, 0),
		testUtxo(1, 10_000_000, 0),
		testUtxo(2, 10_000_000, 0),
		testUtxo(3, 10_000_000, 0),
	}
	s := NewSelector(WithSeed(42))
	seen := map[uint32]bool{}
	for range 64 {
		got, err := s.SelectOne(utxos, 1, true)
		require.NoError(t, err)
		seen[got.Ref.Index] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSelectOneSeedIsReproducible(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 10_000_000, 0),
		testUtxo(1, 10_000_000, 0),
		testUtxo(2, 10_000_000, 0),
	}
	a := NewSelector(WithSeed(99))
	b := NewSelector(WithSeed(99))
	for range 16 {
		x, err := a.SelectOne(utxos, 1, false)
		require.NoError(t, err)
		y, err := b.SelectOne(utxos, 1, false)
		require.NoError(t, err)
		assert.Equal(t, x.Ref, y.Ref)
	}
}

func TestSelectCoins(t *testing.T) {
	tests := []struct {
		name       string
		utxos      []Utxo
		target     uint64
		wantInputs []uint32
		wantErr    error
	}{
		{
			name: "smallest single",
			utxos: []Utxo{
				testUtxo(0, 10_000_000, 0),
				testUtxo(1, 4_000_000, 0),
				testUtxo(2, 2_000_000, 0),
			},
			target:     3_000_000,
			wantInputs: []uint32{1},
		},
		{
			name: "largest first accumulation",
			utxos: []Utxo{
				testUtxo(0, 1_000_000, 0),
				testUtxo(1, 2_000_000, 0),
				testUtxo(2, 3_000_000, 0),
			},
			target:     4_500_000,
			wantInputs: []uint32{2, 1},
		},
		{
			name: "pure before assets",
			utxos: []Utxo{
				testUtxo(0, 3_000_000, 1),
				testUtxo(1, 5_000_000, 0),
			},
			target:     2_000_000,
			wantInputs: []uint32{1},
		},
		{
			name: "falls back to assets",
			utxos: []Utxo{
				testUtxo(0, 3_000_000, 1),
				testUtxo(1, 1_000_000, 0),
			},
			target:     3_500_000,
			wantInputs: []uint32{0, 1},
		},
		{
			name:    "insufficient",
			utxos:   []Utxo{testUtxo(0, 1_000_000, 0)},
			target:  2_000_000,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "empty",
			target:  1,
			wantErr: ErrNoUtxos,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSelector(WithSeed(1))
			sel, err := s.SelectCoins(tc.utxos, tc.target)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			var got []uint32
			for _, in := range sel.Inputs {
				got = append(got, in.Ref.Index)
			}
			assert.Equal(t, tc.wantInputs, got)
			assert.Equal(t, sel.Total-tc.target, sel.Change)
		})
	}
}

func TestSelectCoinsExclude(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 5_000_000, 0),
		testUtxo(1, 6_000_000, 0),
	}
	s := NewSelector(WithSeed(1))
	sel, err := s.SelectCoins(utxos, 1_000_000, utxos[0].Ref)
	require.NoError(t, err)
	require.Len(t, sel.Inputs, 1)
	assert.Equal(t, uint32(1), sel.Inputs[0].Ref.Index)
}

func TestSelectCollateral(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 50_000_000, 1),
		testUtxo(1, 9_000_000, 0),
		testUtxo(2, 6_000_000, 0),
		testUtxo(3, 2_000_000, 0),
	}
	s := NewSelector()
	got, err := s.SelectCollateral(utxos, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Ref.Index)

	_, err = s.SelectCollateral(utxos, 20_000_000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestOutputRefParse(t *testing.T) {
	const txId = "e5a8d1c2b3a4f5e6d7c8b9a0f1e2d3c4b5a6978877665544332211ffeeddccbb"
	ref, err := ParseOutputRef(txId + "#3")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), ref.Index)
	assert.Equal(t, txId+"#3", ref.String())

	_, err = ParseOutputRef(txId)
	assert.ErrorIs(t, err, ErrInvalidOutputRef)
	_, err = ParseOutputRef("abcd#0")
	assert.ErrorIs(t, err, ErrInvalidOutputRef)
}

func TestHoldingAsset(t *testing.T) {
	utxos := []Utxo{
		testUtxo(0, 2_000_000, 0),
		testUtxo(1, 2_000_000, 2),
		testUtxo(2, 2_000_000, 1),
	}
	got := HoldingAsset(utxos, testPolicy, []byte{1})
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].Ref.Index)
	assert.Equal(t, uint64(1), got[0].Quantity(testPolicy, []byte{1}))
}
