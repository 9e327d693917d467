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
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/utxo"
)

const (
	cborMajorMap = 5
	cborTagData  = 24
	cborTagSet   = 258
)

type mapEntry struct {
	Key   any
	Value any
}

// orderedMap encodes as a CBOR map with entries in slice order. It allows
// byte string keys, which Go maps cannot hold.
type orderedMap []mapEntry

func (m orderedMap) MarshalCBOR() ([]byte, error) {
	buf := cborHead(cborMajorMap, uint64(len(m)))
	for _, e := range m {
		k, err := cbor.Encode(e.Key)
		if err != nil {
			return nil, fmt.Errorf("encode map key: %w", err)
		}
		v, err := cbor.Encode(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encode map value: %w", err)
		}
		buf = append(buf, k...)
		buf = append(buf, v...)
	}
	return buf, nil
}

func cborHead(major byte, n uint64) []byte {
	switch {
	case n < 24:
		return []byte{major<<5 | byte(n)}
	case n <= 0xff:
		return []byte{major<<5 | 24, byte(n)}
	case n <= 0xffff:
		ret := []byte{major<<5 | 25, 0, 0}
		binary.BigEndian.PutUint16(ret[1:], uint16(n))
		return ret
	case n <= 0xffffffff:
		ret := []byte{major<<5 | 26, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(ret[1:], uint32(n))
		return ret
	default:
		ret := []byte{major<<5 | 27, 0, 0, 0, 0, 0, 0, 0, 0}
		binary.BigEndian.PutUint64(ret[1:], n)
		return ret
	}
}

func addressBytes(bech32 string) ([]byte, error) {
	addr, err := lcommon.NewAddress(bech32)
	if err != nil {
		return nil, fmt.Errorf("parse address %s: %w", bech32, err)
	}
	ret, err := addr.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode address %s: %w", bech32, err)
	}
	return ret, nil
}

// assetBundle groups quantities by policy and name in a stable order
type assetBundle[T uint64 | int64] struct {
	policies []lcommon.Blake2b224
	names    map[lcommon.Blake2b224]map[string]T
}

func newAssetBundle[T uint64 | int64]() *assetBundle[T] {
	return &assetBundle[T]{
		names: make(map[lcommon.Blake2b224]map[string]T),
	}
}

func (b *assetBundle[T]) add(policyId lcommon.Blake2b224, name []byte, qty T) {
	if _, ok := b.names[policyId]; !ok {
		b.names[policyId] = make(map[string]T)
		b.policies = append(b.policies, policyId)
	}
	b.names[policyId][string(name)] += qty
}

func (b *assetBundle[T]) empty() bool {
	for _, names := range b.names {
		for _, qty := range names {
			if qty != 0 {
				return false
			}
		}
	}
	return true
}

func (b *assetBundle[T]) sortedPolicies() []lcommon.Blake2b224 {
	ret := slices.Clone(b.policies)
	slices.SortFunc(ret, func(x, y lcommon.Blake2b224) int {
		return bytes.Compare(x[:], y[:])
	})
	return ret
}

func sortedNames[T uint64 | int64](names map[string]T) []string {
	ret := make([]string, 0, len(names))
	for name, qty := range names {
		if qty != 0 {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret
}

// cbor returns the multi-asset map, omitting zero quantities
func (b *assetBundle[T]) cbor() orderedMap {
	var ret orderedMap
	for _, policyId := range b.sortedPolicies() {
		names := sortedNames(b.names[policyId])
		if len(names) == 0 {
			continue
		}
		inner := make(orderedMap, 0, len(names))
		for _, name := range names {
			inner = append(inner, mapEntry{
				Key:   []byte(name),
				Value: b.names[policyId][name],
			})
		}
		ret = append(ret, mapEntry{Key: policyId.Bytes(), Value: inner})
	}
	return ret
}

func (b *assetBundle[T]) assets() []utxo.Asset {
	var ret []utxo.Asset
	for _, policyId := range b.sortedPolicies() {
		for _, name := range sortedNames(b.names[policyId]) {
			qty := b.names[policyId][name]
			if qty < 0 {
				continue
			}
			ret = append(ret, utxo.Asset{
				PolicyId: policyId,
				Name:     []byte(name),
				Quantity: uint64(qty),
			})
		}
	}
	return ret
}

func compareRefs(a, b utxo.OutputRef) int {
	if c := bytes.Compare(a.TxId[:], b.TxId[:]); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	}
	return 0
}

func encodeRef(ref utxo.OutputRef) []any {
	return []any{ref.TxId.Bytes(), ref.Index}
}

func cborSet(items []any) cbor.Tag {
	return cbor.Tag{Number: cborTagSet, Content: items}
}
