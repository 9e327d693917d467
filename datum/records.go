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

package datum

import (
	"errors"
	"fmt"
	"math/big"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
	"github.com/blinklabs-io/quorum/utxo"
)

const (
	proposalFieldCount     = 11
	distributionFieldCount = 4
)

// OutputRef is the Plutus form of a ledger output reference
type OutputRef utxo.OutputRef

func (r OutputRef) ToPlutusData() data.PlutusData {
	return data.NewConstr(
		0,
		data.NewByteString(r.TxId.Bytes()),
		data.NewInteger(big.NewInt(int64(r.Index))),
	)
}

func OutputRefFromData(pd data.PlutusData) (utxo.OutputRef, error) {
	r, err := constrFields("OutputRef", pd, 0, 2)
	if err != nil {
		return utxo.OutputRef{}, err
	}
	txId := r.bytes(0)
	idx := r.uint32(1)
	if r.err == nil && len(txId) != 32 {
		r.fail(0, "expected 32 byte transaction id, got %d bytes", len(txId))
	}
	if r.err != nil {
		return utxo.OutputRef{}, r.err
	}
	return utxo.OutputRef{
		TxId:  lcommon.NewBlake2b256(txId),
		Index: idx,
	}, nil
}

type CredentialKind uint

const (
	CredentialKeyHash    CredentialKind = 0
	CredentialScriptHash CredentialKind = 1
)

// Credential identifies a member by payment key hash or script hash
type Credential struct {
	Kind CredentialKind
	Hash lcommon.Blake2b224
}

func KeyCredential(hash lcommon.Blake2b224) Credential {
	return Credential{Kind: CredentialKeyHash, Hash: hash}
}

func ScriptCredential(hash lcommon.Blake2b224) Credential {
	return Credential{Kind: CredentialScriptHash, Hash: hash}
}

func (c Credential) ToPlutusData() data.PlutusData {
	return data.NewConstr(uint(c.Kind), data.NewByteString(c.Hash.Bytes()))
}

func CredentialFromData(pd data.PlutusData) (Credential, error) {
	c, ok := pd.(*data.Constr)
	if !ok {
		return Credential{}, &SchemaMismatchError{
			Record:         "Credential",
			ExpectedFields: 1,
			ObservedFields: 1,
			Field:          -1,
			Reason:         fmt.Sprintf("expected constructor, got %T", pd),
		}
	}
	if c.Tag > uint(CredentialScriptHash) {
		return Credential{}, &SchemaMismatchError{
			Record:         "Credential",
			ExpectedTag:    uint(CredentialScriptHash),
			ObservedTag:    c.Tag,
			ExpectedFields: 1,
			ObservedFields: len(c.Fields),
			Field:          -1,
			Reason:         "unknown credential kind",
		}
	}
	r, err := constrFields("Credential", pd, c.Tag, 1)
	if err != nil {
		return Credential{}, err
	}
	hash := r.hash28(0)
	if r.err != nil {
		return Credential{}, r.err
	}
	return Credential{Kind: CredentialKind(c.Tag), Hash: hash}, nil
}

// ProposalRecord is attached to the reference token at the metadata contract.
// Text and address fields carry UTF-8 bytes; conversion to strings happens in
// callers.
type ProposalRecord struct {
	Title               []byte
	Description         []byte
	ExternalRefId       []byte
	ExternalRefType     []byte
	BaseAssetName       []byte
	MetadataAddress     []byte
	DistributionAddress []byte
	Deadline            int64
	TotalMembers        uint64
	RequiredVotes       uint64
	PolicyId            lcommon.Blake2b224
}

func (p ProposalRecord) ToPlutusData() data.PlutusData {
	return data.NewConstr(
		0,
		data.NewByteString(p.Title),
		data.NewByteString(p.Description),
		data.NewByteString(p.ExternalRefId),
		data.NewByteString(p.ExternalRefType),
		data.NewInteger(big.NewInt(p.Deadline)),
		data.NewInteger(bigUint(p.TotalMembers)),
		data.NewInteger(bigUint(p.RequiredVotes)),
		data.NewByteString(p.PolicyId.Bytes()),
		data.NewByteString(p.BaseAssetName),
		data.NewByteString(p.MetadataAddress),
		data.NewByteString(p.DistributionAddress),
	)
}

func ProposalFromData(pd data.PlutusData) (ProposalRecord, error) {
	r, err := constrFields("ProposalRecord", pd, 0, proposalFieldCount)
	if err != nil {
		return ProposalRecord{}, err
	}
	ret := ProposalRecord{
		Title:               r.bytes(0),
		Description:         r.bytes(1),
		ExternalRefId:       r.bytes(2),
		ExternalRefType:     r.bytes(3),
		Deadline:            r.int64(4),
		TotalMembers:        r.uint64(5),
		RequiredVotes:       r.uint64(6),
		PolicyId:            r.hash28(7),
		BaseAssetName:       r.bytes(8),
		MetadataAddress:     r.bytes(9),
		DistributionAddress: r.bytes(10),
	}
	if r.err != nil {
		return ProposalRecord{}, r.err
	}
	return ret, nil
}

func DecodeProposal(raw []byte) (ProposalRecord, error) {
	pd, err := decodeCbor("ProposalRecord", raw)
	if err != nil {
		return ProposalRecord{}, err
	}
	return ProposalFromData(pd)
}

// RequiredVotesFor returns the simple majority of totalMembers
func RequiredVotesFor(totalMembers uint64) uint64 {
	return totalMembers/2 + 1
}

var ErrDistributionExhausted = errors.New("distribution exhausted")

// DistributionRecord is attached to the unclaimed user tokens at the
// distribution contract
type DistributionRecord struct {
	Members       []Credential
	UserAssetName []byte
	Remaining     uint64
	PolicyId      lcommon.Blake2b224
}

func (d DistributionRecord) ToPlutusData() data.PlutusData {
	members := make([]data.PlutusData, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, m.ToPlutusData())
	}
	return data.NewConstr(
		0,
		data.NewList(members...),
		data.NewByteString(d.PolicyId.Bytes()),
		data.NewByteString(d.UserAssetName),
		data.NewInteger(bigUint(d.Remaining)),
	)
}

// IsMember reports whether cred is in the authorized member list
func (d DistributionRecord) IsMember(cred Credential) bool {
	for _, m := range d.Members {
		if m == cred {
			return true
		}
	}
	return false
}

// AfterClaim returns the record that must follow a single claim. Only
// Remaining changes.
func (d DistributionRecord) AfterClaim() (DistributionRecord, error) {
	if d.Remaining == 0 {
		return DistributionRecord{}, ErrDistributionExhausted
	}
	next := d
	next.Members = append([]Credential(nil), d.Members...)
	next.UserAssetName = append([]byte(nil), d.UserAssetName...)
	next.Remaining = d.Remaining - 1
	return next, nil
}

func DistributionFromData(pd data.PlutusData) (DistributionRecord, error) {
	r, err := constrFields("DistributionRecord", pd, 0, distributionFieldCount)
	if err != nil {
		return DistributionRecord{}, err
	}
	items := r.list(0)
	policyId := r.hash28(1)
	userName := r.bytes(2)
	remaining := r.uint64(3)
	if r.err != nil {
		return DistributionRecord{}, r.err
	}
	members := make([]Credential, 0, len(items))
	for i, item := range items {
		cred, err := CredentialFromData(item)
		if err != nil {
			return DistributionRecord{}, fmt.Errorf(
				"DistributionRecord member %d: %w",
				i,
				err,
			)
		}
		members = append(members, cred)
	}
	return DistributionRecord{
		Members:       members,
		PolicyId:      policyId,
		UserAssetName: userName,
		Remaining:     remaining,
	}, nil
}

func DecodeDistribution(raw []byte) (DistributionRecord, error) {
	pd, err := decodeCbor("DistributionRecord", raw)
	if err != nil {
		return DistributionRecord{}, err
	}
	return DistributionFromData(pd)
}

// Vote is the choice attached to a user token at the voting contract
type Vote uint

const (
	VoteYes Vote = 0
	VoteNo  Vote = 1
)

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	default:
		return fmt.Sprintf("Vote(%d)", uint(v))
	}
}

// ParseVote accepts "yes" or "no"
func ParseVote(s string) (Vote, error) {
	switch s {
	case "yes", "Yes", "YES":
		return VoteYes, nil
	case "no", "No", "NO":
		return VoteNo, nil
	}
	return 0, fmt.Errorf("invalid vote %q: expected yes or no", s)
}

func (v Vote) ToPlutusData() data.PlutusData {
	return data.NewConstr(uint(v))
}

func VoteFromData(pd data.PlutusData) (Vote, error) {
	c, ok := pd.(*data.Constr)
	if !ok {
		return 0, &SchemaMismatchError{
			Record: "VoteRecord",
			Field:  -1,
			Reason: fmt.Sprintf("expected constructor, got %T", pd),
		}
	}
	if c.Tag > uint(VoteNo) || len(c.Fields) != 0 {
		return 0, &SchemaMismatchError{
			Record:         "VoteRecord",
			ExpectedTag:    min(c.Tag, uint(VoteNo)),
			ObservedTag:    c.Tag,
			ObservedFields: len(c.Fields),
			Field:          -1,
		}
	}
	return Vote(c.Tag), nil
}

func DecodeVote(raw []byte) (Vote, error) {
	pd, err := decodeCbor("VoteRecord", raw)
	if err != nil {
		return 0, err
	}
	return VoteFromData(pd)
}

// MintAction is the redeemer for the one-time minting policy
type MintAction uint

const (
	MintActionMint MintAction = 0
	MintActionBurn MintAction = 1
)

func (a MintAction) ToPlutusData() data.PlutusData {
	return data.NewConstr(uint(a))
}

// DistributionAction is the redeemer for spending from the distribution contract
type DistributionAction uint

const DistributionActionClaim DistributionAction = 0

func (a DistributionAction) ToPlutusData() data.PlutusData {
	return data.NewConstr(uint(a))
}
