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
	"fmt"

	ouroboros "github.com/blinklabs-io/gouroboros"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/datum"
)

// mainnetMagic is the network magic for Cardano mainnet
const mainnetMagic = 764824073

// Network carries what address derivation needs to know about a named network
type Network struct {
	Name         string
	NetworkMagic uint32
	AddressId    uint8
}

func NetworkByName(name string) (Network, error) {
	network, ok := ouroboros.NetworkByName(name)
	if !ok {
		return Network{}, fmt.Errorf("unknown network name: %s", name)
	}
	ret := Network{
		Name:         name,
		NetworkMagic: network.NetworkMagic,
		AddressId:    lcommon.AddressNetworkTestnet,
	}
	if network.NetworkMagic == mainnetMagic {
		ret.AddressId = lcommon.AddressNetworkMainnet
	}
	return ret, nil
}

// ScriptAddress returns the enterprise address paying to a script hash
func ScriptAddress(
	hash lcommon.Blake2b224,
	network Network,
) (lcommon.Address, error) {
	addr, err := lcommon.NewAddressFromParts(
		lcommon.AddressTypeScriptNone,
		network.AddressId,
		hash[:],
		nil,
	)
	if err != nil {
		return lcommon.Address{}, fmt.Errorf("build script address: %w", err)
	}
	return addr, nil
}

// KeyAddress returns the enterprise address paying to a key hash
func KeyAddress(
	hash lcommon.Blake2b224,
	network Network,
) (lcommon.Address, error) {
	addr, err := lcommon.NewAddressFromParts(
		lcommon.AddressTypeKeyNone,
		network.AddressId,
		hash[:],
		nil,
	)
	if err != nil {
		return lcommon.Address{}, fmt.Errorf("build key address: %w", err)
	}
	return addr, nil
}

// PaymentCredential returns the payment part of a Shelley address
func PaymentCredential(bech32 string) (datum.Credential, error) {
	addr, err := lcommon.NewAddress(bech32)
	if err != nil {
		return datum.Credential{}, fmt.Errorf("parse address %q: %w", bech32, err)
	}
	raw, err := addr.Bytes()
	if err != nil {
		return datum.Credential{}, fmt.Errorf("encode address: %w", err)
	}
	// header types 0-7 carry a 28 byte payment credential after the header
	if len(raw) < 29 || raw[0]>>4 > 7 {
		return datum.Credential{}, fmt.Errorf(
			"address %q has no payment credential",
			bech32,
		)
	}
	hash := lcommon.NewBlake2b224(raw[1:29])
	if (raw[0]>>4)&0x01 != 0 {
		return datum.ScriptCredential(hash), nil
	}
	return datum.KeyCredential(hash), nil
}
