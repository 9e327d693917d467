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

package contract

import (
	"bytes"
	"encoding/hex"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// CIP-68 asset name labels
var (
	ReferenceLabel = []byte{0x00, 0x06, 0x43, 0xb0}
	UserLabel      = []byte{0x00, 0x0d, 0xe1, 0x40}
)

// MaxAssetNameBytes is the ledger limit on asset name length
const MaxAssetNameBytes = 32

// MaxBaseNameBytes leaves room for the 4-byte label
const MaxBaseNameBytes = MaxAssetNameBytes - 4

func labeled(label, base []byte) []byte {
	ret := make([]byte, 0, len(label)+len(base))
	ret = append(ret, label...)
	return append(ret, base...)
}

// ReferenceName returns the asset name of the proposal's reference token
func ReferenceName(base []byte) []byte {
	return labeled(ReferenceLabel, base)
}

// UserName returns the asset name of the proposal's voting tokens
func UserName(base []byte) []byte {
	return labeled(UserLabel, base)
}

// BaseName strips a reference or user label from an asset name
func BaseName(name []byte) ([]byte, bool) {
	if base, ok := bytes.CutPrefix(name, ReferenceLabel); ok {
		return base, true
	}
	if base, ok := bytes.CutPrefix(name, UserLabel); ok {
		return base, true
	}
	return nil, false
}

// Unit returns the hex concatenation of policy ID and asset name
func Unit(policyId lcommon.Blake2b224, name []byte) string {
	return policyId.String() + hex.EncodeToString(name)
}

// ParseUnit splits a hex asset unit into policy ID and asset name
func ParseUnit(unit string) (lcommon.Blake2b224, []byte, error) {
	raw, err := hex.DecodeString(unit)
	if err != nil {
		return lcommon.Blake2b224{}, nil, fmt.Errorf("decode unit: %w", err)
	}
	if len(raw) < 28 || len(raw) > 28+MaxAssetNameBytes {
		return lcommon.Blake2b224{}, nil, fmt.Errorf(
			"invalid unit length %d",
			len(raw),
		)
	}
	return lcommon.NewBlake2b224(raw[:28]), raw[28:], nil
}
