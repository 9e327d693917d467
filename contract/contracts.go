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
	"errors"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/utxo"
)

// Validator is one of the fixed protocol contracts. Template is nil when only
// the address is known, in which case transactions spending from it must use
// ScriptRef.
type Validator struct {
	Template  *Template
	ScriptRef *utxo.OutputRef
	Address   string
	Hash      lcommon.Blake2b224
}

// Contracts holds everything needed to derive protocol identities and addresses
type Contracts struct {
	Mint         Template
	Metadata     Validator
	Distribution Validator
	Voting       Validator
	Network      Network
}

// ValidatorConfig describes where a validator comes from. Address, when set,
// takes precedence over deriving one from the blueprint title.
type ValidatorConfig struct {
	Title     string
	Address   string
	ScriptRef string
}

type ContractsConfig struct {
	Blueprint    *Blueprint
	Network      string
	MintTitle    string
	Metadata     ValidatorConfig
	Distribution ValidatorConfig
	Voting       ValidatorConfig
}

// NewContracts resolves the minting template and the three contract addresses
func NewContracts(cfg ContractsConfig) (*Contracts, error) {
	if cfg.Blueprint == nil {
		return nil, errors.New("no blueprint loaded")
	}
	network, err := NetworkByName(cfg.Network)
	if err != nil {
		return nil, err
	}
	mint, err := cfg.Blueprint.Template(cfg.MintTitle)
	if err != nil {
		return nil, fmt.Errorf("minting policy: %w", err)
	}
	ret := &Contracts{
		Mint:    mint,
		Network: network,
	}
	targets := []struct {
		name string
		cfg  ValidatorConfig
		dest *Validator
	}{
		{"metadata", cfg.Metadata, &ret.Metadata},
		{"distribution", cfg.Distribution, &ret.Distribution},
		{"voting", cfg.Voting, &ret.Voting},
	}
	for _, target := range targets {
		v, err := resolveValidator(cfg.Blueprint, target.cfg, network)
		if err != nil {
			return nil, fmt.Errorf("%s contract: %w", target.name, err)
		}
		*target.dest = v
	}
	return ret, nil
}

func resolveValidator(
	bp *Blueprint,
	cfg ValidatorConfig,
	network Network,
) (Validator, error) {
	var ret Validator
	if cfg.ScriptRef != "" {
		ref, err := utxo.ParseOutputRef(cfg.ScriptRef)
		if err != nil {
			return Validator{}, fmt.Errorf("script reference: %w", err)
		}
		ret.ScriptRef = &ref
	}
	if cfg.Title != "" {
		t, err := bp.Template(cfg.Title)
		if err != nil {
			return Validator{}, err
		}
		ret.Template = &t
		ret.Hash = t.Hash()
		addr, err := ScriptAddress(ret.Hash, network)
		if err != nil {
			return Validator{}, err
		}
		ret.Address = addr.String()
	}
	if cfg.Address != "" {
		cred, err := PaymentCredential(cfg.Address)
		if err != nil {
			return Validator{}, err
		}
		if cred.Kind != datum.CredentialScriptHash {
			return Validator{}, fmt.Errorf(
				"address %s is not a script address",
				cfg.Address,
			)
		}
		if ret.Template != nil && cred.Hash != ret.Hash {
			return Validator{}, &IdentityMismatchError{
				Source:   "configured address " + cfg.Address,
				Expected: cred.Hash,
				Derived:  ret.Hash,
			}
		}
		ret.Address = cfg.Address
		ret.Hash = cred.Hash
	}
	if ret.Address == "" {
		return Validator{}, errors.New("neither address nor validator title given")
	}
	return ret, nil
}

// PolicyFor derives the one-time policy ID for ref
func (c *Contracts) PolicyFor(ref utxo.OutputRef) (lcommon.Blake2b224, error) {
	return DeriveIdentity(c.Mint, ref)
}

// VerifyPolicy re-derives the policy ID for ref and compares it with policyId
func (c *Contracts) VerifyPolicy(
	source string,
	policyId lcommon.Blake2b224,
	ref utxo.OutputRef,
) error {
	derived, err := c.PolicyFor(ref)
	if err != nil {
		return err
	}
	return CheckIdentity(source, policyId, derived)
}

// MintingPolicy returns the minting script parameterized with ref
func (c *Contracts) MintingPolicy(ref utxo.OutputRef) (Template, error) {
	return ParameterizePolicy(c.Mint, ref)
}
