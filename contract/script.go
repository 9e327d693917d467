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

// Package contract derives script identities and addresses for the voting
// protocol's validators.
package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
	"github.com/blinklabs-io/plutigo/syn"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/utxo"
)

var ErrInvalidScript = errors.New("invalid script")

type PlutusVersion uint8

const (
	PlutusV1 PlutusVersion = 1
	PlutusV2 PlutusVersion = 2
	PlutusV3 PlutusVersion = 3
)

func ParsePlutusVersion(s string) (PlutusVersion, error) {
	switch strings.ToLower(s) {
	case "v1", "plutusv1":
		return PlutusV1, nil
	case "v2", "plutusv2", "":
		return PlutusV2, nil
	case "v3", "plutusv3":
		return PlutusV3, nil
	}
	return 0, fmt.Errorf("unknown plutus version: %s", s)
}

func (v PlutusVersion) String() string {
	return fmt.Sprintf("v%d", uint8(v))
}

// RefType returns the ledger script reference type tag for the version
func (v PlutusVersion) RefType() uint8 {
	switch v {
	case PlutusV1:
		return lcommon.ScriptRefTypePlutusV1
	case PlutusV3:
		return lcommon.ScriptRefTypePlutusV3
	default:
		return lcommon.ScriptRefTypePlutusV2
	}
}

// Template is a compiled validator. Code is the flat-encoded program wrapped
// in a single CBOR byte string, which is the form the ledger hashes.
type Template struct {
	Title   string
	Code    []byte
	Version PlutusVersion
}

// Script returns the ledger script value for the template
func (t Template) Script() lcommon.Script {
	switch t.Version {
	case PlutusV1:
		return lcommon.PlutusV1Script(t.Code)
	case PlutusV3:
		return lcommon.PlutusV3Script(t.Code)
	default:
		return lcommon.PlutusV2Script(t.Code)
	}
}

// Hash returns the script hash, which is also the minting policy ID
func (t Template) Hash() lcommon.Blake2b224 {
	return lcommon.Blake2b224(t.Script().Hash())
}

// ApplyParams applies each parameter to the template's program in order,
// as the validator's leading arguments
func ApplyParams(t Template, params ...data.PlutusData) (ret Template, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = Template{}
			err = fmt.Errorf("%w: %s: %v", ErrInvalidScript, t.Title, r)
		}
	}()
	var flat []byte
	if _, err := cbor.Decode(t.Code, &flat); err != nil {
		return Template{}, fmt.Errorf(
			"%w: %s: unwrap CBOR: %w",
			ErrInvalidScript,
			t.Title,
			err,
		)
	}
	if _, err := syn.Decode[syn.DeBruijn](flat); err != nil {
		return Template{}, fmt.Errorf(
			"%w: %s: decode program: %w",
			ErrInvalidScript,
			t.Title,
			err,
		)
	}
	args := make([][]byte, 0, len(params))
	for _, p := range params {
		arg, err := data.Encode(p)
		if err != nil {
			return Template{}, fmt.Errorf("encode parameter: %w", err)
		}
		args = append(args, arg)
	}
	applied, err := applyFlat(flat, args)
	if err != nil {
		return Template{}, fmt.Errorf(
			"%w: %s: apply parameters: %w",
			ErrInvalidScript,
			t.Title,
			err,
		)
	}
	code, err := cbor.Encode(applied)
	if err != nil {
		return Template{}, fmt.Errorf("wrap applied program: %w", err)
	}
	return Template{
		Title:   t.Title,
		Version: t.Version,
		Code:    code,
	}, nil
}

// ParameterizePolicy applies a one-time output reference to the minting template
func ParameterizePolicy(t Template, ref utxo.OutputRef) (Template, error) {
	return ApplyParams(t, datum.OutputRef(ref).ToPlutusData())
}

// DeriveIdentity returns the policy ID that the template will have once
// parameterized with ref. The same inputs always produce the same ID.
func DeriveIdentity(
	t Template,
	ref utxo.OutputRef,
) (lcommon.Blake2b224, error) {
	applied, err := ParameterizePolicy(t, ref)
	if err != nil {
		return lcommon.Blake2b224{}, err
	}
	return applied.Hash(), nil
}
