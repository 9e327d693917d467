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
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/indexer"
)

// Plan is a transaction description for an external transaction builder,
// such as a browser wallet library. Byte values are hex encoded.
type Plan struct {
	Kind            string         `json:"kind"`
	ChangeAddress   string         `json:"change_address"`
	Inputs          []PlanInput    `json:"inputs"`
	ReferenceInputs []string       `json:"reference_inputs,omitempty"`
	Mints           []PlanMint     `json:"mints,omitempty"`
	Outputs         []PlanOutput   `json:"outputs"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RequiredSigners []string       `json:"required_signers,omitempty"`
	ValidFrom       uint64         `json:"valid_from,omitempty"`
	ValidTo         uint64         `json:"valid_to,omitempty"`
}

type PlanInput struct {
	TxRef         string `json:"tx_ref"`
	Redeemer      string `json:"redeemer,omitempty"`
	Script        string `json:"script,omitempty"`
	ScriptRef     string `json:"script_ref,omitempty"`
	ScriptVersion string `json:"script_version,omitempty"`
}

type PlanMint struct {
	PolicyId      string           `json:"policy_id"`
	Script        string           `json:"script"`
	ScriptVersion string           `json:"script_version"`
	Redeemer      string           `json:"redeemer"`
	Assets        map[string]int64 `json:"assets"`
}

type PlanOutput struct {
	Address string `json:"address"`
	// Lovelace of zero leaves the minimum to the external builder
	Lovelace    uint64            `json:"lovelace"`
	Assets      map[string]uint64 `json:"assets,omitempty"`
	InlineDatum string            `json:"inline_datum,omitempty"`
}

// PlanBackend renders drafts as JSON plans. Fee balancing and collateral are
// left to the consumer, so its output cannot be signed here.
type PlanBackend struct{}

func NewPlanBackend() *PlanBackend {
	return &PlanBackend{}
}

func (b *PlanBackend) Name() string {
	return BackendPlan
}

func (b *PlanBackend) Assemble(
	ctx context.Context,
	d *Draft,
	_ indexer.ProtocolParams,
) (*Assembled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan, err := NewPlan(d)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return &Assembled{
		Draft:   d,
		Backend: BackendPlan,
		Plan:    raw,
	}, nil
}

// NewPlan converts a draft into its plan form
func NewPlan(d *Draft) (*Plan, error) {
	if d.ChangeAddress == "" {
		return nil, invalidRequest("no change address")
	}
	ret := &Plan{
		Kind:          string(d.Kind),
		ChangeAddress: d.ChangeAddress,
		ValidFrom:     d.ValidFrom,
		ValidTo:       d.ValidTo,
	}
	for _, in := range d.Inputs {
		pi := PlanInput{TxRef: in.Utxo.Ref.String()}
		if in.isScript() {
			pi.Redeemer = hex.EncodeToString(in.Redeemer)
			switch {
			case in.Script != nil:
				pi.Script = hex.EncodeToString(in.Script.Code)
				pi.ScriptVersion = in.Script.Version.String()
			case in.ScriptRef != nil:
				pi.ScriptRef = in.ScriptRef.String()
				v := in.ScriptVersion
				if v == 0 {
					v = contract.PlutusV2
				}
				pi.ScriptVersion = v.String()
			default:
				return nil, invalidRequest(
					"script input %s has neither script nor reference",
					in.Utxo.Ref.String(),
				)
			}
		}
		ret.Inputs = append(ret.Inputs, pi)
	}
	for _, ref := range d.ReferenceInputs {
		ret.ReferenceInputs = append(ret.ReferenceInputs, ref.String())
	}
	for _, m := range d.Mints {
		pm := PlanMint{
			PolicyId:      m.PolicyId.String(),
			Script:        hex.EncodeToString(m.Script.Code),
			ScriptVersion: m.Script.Version.String(),
			Redeemer:      hex.EncodeToString(m.Redeemer),
			Assets:        make(map[string]int64, len(m.Assets)),
		}
		for _, a := range m.Assets {
			pm.Assets[hex.EncodeToString(a.Name)] += a.Quantity
		}
		ret.Mints = append(ret.Mints, pm)
	}
	for _, o := range d.Outputs {
		po := PlanOutput{
			Address:  o.Address,
			Lovelace: o.Lovelace,
		}
		if len(o.Assets) > 0 {
			po.Assets = make(map[string]uint64, len(o.Assets))
			for _, a := range o.Assets {
				po.Assets[a.Unit()] += a.Quantity
			}
		}
		if o.Datum != nil {
			po.InlineDatum = hex.EncodeToString(o.Datum)
		}
		ret.Outputs = append(ret.Outputs, po)
	}
	if !d.Metadata.empty() {
		ret.Metadata = d.Metadata.jsonValue()
	}
	for _, s := range d.RequiredSigners {
		ret.RequiredSigners = append(ret.RequiredSigners, s.String())
	}
	return ret, nil
}
