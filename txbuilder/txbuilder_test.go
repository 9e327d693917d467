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
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/event"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/paramstore"
	"github.com/blinklabs-io/quorum/utxo"
	"github.com/blinklabs-io/quorum/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const testBaseName = "budget-2026"

// identityCode is (program 1.0.0 (lam x x)) in flat, wrapped in a CBOR byte string
const identityCode = "46010000200101"

// skewedPolicies derives policy IDs for the next output index, so they never
// match the minting script
type skewedPolicies struct {
	*contract.Contracts
}

func (p skewedPolicies) PolicyFor(ref utxo.OutputRef) (lcommon.Blake2b224, error) {
	ref.Index++
	return p.Contracts.PolicyFor(ref)
}

type fakeIndexer struct {
	utxos map[string][]utxo.Utxo
	err   error
}

func (f *fakeIndexer) UtxosAt(_ context.Context, address string) ([]utxo.Utxo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.utxos[address], nil
}

func (f *fakeIndexer) TxInputs(context.Context, lcommon.Blake2b256) ([]utxo.OutputRef, error) {
	return nil, indexer.ErrNotFound
}

func (f *fakeIndexer) TxTime(context.Context, lcommon.Blake2b256) (time.Time, error) {
	return time.Time{}, indexer.ErrNotFound
}

func (f *fakeIndexer) ProtocolParams(context.Context) (indexer.ProtocolParams, error) {
	return testProtocolParams(), nil
}

type fakeSubmitter struct {
	submitted [][]byte
}

func (f *fakeSubmitter) SubmitTx(_ context.Context, txCbor []byte) (string, error) {
	f.submitted = append(f.submitted, txCbor)
	var parts []cbor.RawMessage
	if _, err := cbor.Decode(txCbor, &parts); err != nil {
		return "", err
	}
	hash := blake2b.Sum256(parts[0])
	return hex.EncodeToString(hash[:]), nil
}

func testProtocolParams() indexer.ProtocolParams {
	costModel := func(n int) []int64 {
		ret := make([]int64, n)
		for i := range ret {
			ret[i] = int64(1000 + i)
		}
		return ret
	}
	return indexer.ProtocolParams{
		MinFeeA:             44,
		MinFeeB:             155381,
		CoinsPerUtxoByte:    4310,
		MaxTxSize:           16384,
		CollateralPercent:   150,
		MaxCollateralInputs: 3,
		PriceMem:            0.0577,
		PriceStep:           0.0000721,
		MaxTxExMem:          14_000_000,
		MaxTxExSteps:        10_000_000_000,
		CostModels: map[uint8][]int64{
			2: costModel(175),
			3: costModel(297),
		},
	}
}

func txId(b byte) lcommon.Blake2b256 {
	return lcommon.NewBlake2b256(bytes.Repeat([]byte{b}, 32))
}

func wrapCode(t *testing.T, s string) []byte {
	t.Helper()
	code, err := cbor.Encode([]byte(s))
	require.NoError(t, err)
	return code
}

func scriptAddress(t *testing.T, hash lcommon.Blake2b224, network contract.Network) string {
	t.Helper()
	addr, err := contract.ScriptAddress(hash, network)
	require.NoError(t, err)
	return addr.String()
}

type testEnv struct {
	contracts *contract.Contracts
	idx       *fakeIndexer
	wallet    *wallet.KeyWallet
	submitter *fakeSubmitter
	params    *paramstore.Store
	eventBus  *event.EventBus
	builder   *Builder
}

func newTestEnv(t *testing.T, opts ...BuilderOptionFunc) *testEnv {
	t.Helper()
	network, err := contract.NetworkByName("preview")
	require.NoError(t, err)
	votingHash := lcommon.Blake2b224Hash([]byte("voting validator"))
	metaHash := lcommon.Blake2b224Hash([]byte("metadata validator"))
	blueprint, err := contract.ParseBlueprint(fmt.Appendf(nil, `{
  "preamble": {"title": "quorum/voting", "version": "0.1.0", "plutusVersion": "v2"},
  "validators": [
    {"title": "governance_token.mint", "compiledCode": %q},
    {"title": "token_distribution.spend", "compiledCode": %q}
  ]
}`, identityCode, hex.EncodeToString(wrapCode(t, "distribution validator"))))
	require.NoError(t, err)
	contracts, err := contract.NewContracts(contract.ContractsConfig{
		Blueprint:    blueprint,
		Network:      "preview",
		MintTitle:    "governance_token",
		Metadata:     contract.ValidatorConfig{Address: scriptAddress(t, metaHash, network)},
		Distribution: contract.ValidatorConfig{Title: "token_distribution"},
		Voting:       contract.ValidatorConfig{Address: scriptAddress(t, votingHash, network)},
	})
	require.NoError(t, err)
	env := &testEnv{
		contracts: contracts,
		idx:       &fakeIndexer{utxos: map[string][]utxo.Utxo{}},
		submitter: &fakeSubmitter{},
	}
	skey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x07}, ed25519.SeedSize))
	env.wallet, err = wallet.NewKeyWallet(
		skey,
		network,
		env.idx,
		wallet.WithSubmitter(env.submitter),
	)
	require.NoError(t, err)
	env.params, err = paramstore.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.params.Close() })
	env.eventBus = event.NewEventBus(nil, nil)
	t.Cleanup(env.eventBus.Stop)
	slotConfig, err := indexer.SlotConfigForNetwork("preview")
	require.NoError(t, err)
	allOpts := []BuilderOptionFunc{
		WithParamStore(env.params),
		WithEventBus(env.eventBus),
		WithSlotConfig(slotConfig),
		WithUtxoSelector(utxo.NewSelector(utxo.WithSeed(42))),
	}
	allOpts = append(allOpts, opts...)
	env.builder, err = NewBuilder(contracts, env.wallet, env.idx, allOpts...)
	require.NoError(t, err)
	return env
}

func (e *testEnv) walletAddress() string {
	addrs, _ := e.wallet.Addresses(context.Background())
	return addrs[0]
}

func (e *testEnv) setWalletUtxos(utxos ...utxo.Utxo) {
	addr := e.walletAddress()
	for i := range utxos {
		utxos[i].Address = addr
	}
	e.idx.utxos[addr] = utxos
}

func (e *testEnv) credential() datum.Credential {
	return datum.KeyCredential(e.wallet.KeyHash())
}

type decodedTx struct {
	body     map[uint]cbor.RawMessage
	witness  map[uint]cbor.RawMessage
	inputs   []utxo.OutputRef
	outputs  []utxo.Utxo
	fee      uint64
	metadata bool
}

func decodeTx(t *testing.T, a *Assembled) decodedTx {
	t.Helper()
	require.True(t, a.Signable())
	tx, err := conway.NewConwayTransactionFromCbor(a.TxCbor)
	require.NoError(t, err, "assembled CBOR must decode as a Conway transaction")
	assert.Equal(t, a.TxHash, tx.Hash().String())
	var ret decodedTx
	for _, in := range tx.Inputs() {
		ret.inputs = append(ret.inputs, utxo.OutputRef{
			TxId:  in.Id(),
			Index: in.Index(),
		})
	}
	var parts []cbor.RawMessage
	_, err = cbor.Decode(a.TxCbor, &parts)
	require.NoError(t, err)
	require.Len(t, parts, 4)
	_, err = cbor.Decode(parts[0], &ret.body)
	require.NoError(t, err)
	_, err = cbor.Decode(parts[1], &ret.witness)
	require.NoError(t, err)
	ret.metadata = !bytes.Equal(parts[3], []byte{0xf6})
	_, err = cbor.Decode(ret.body[2], &ret.fee)
	require.NoError(t, err)
	var outputs []cbor.RawMessage
	_, err = cbor.Decode(ret.body[1], &outputs)
	require.NoError(t, err)
	hash, err := hex.DecodeString(a.TxHash)
	require.NoError(t, err)
	for i, raw := range outputs {
		u, err := utxo.FromCbor(
			utxo.OutputRef{
				TxId:  lcommon.NewBlake2b256(hash),
				Index: uint32(i), // #nosec G115
			},
			raw,
		)
		require.NoError(t, err)
		ret.outputs = append(ret.outputs, u)
	}
	return ret
}

// assertBalanced checks lovelace and native asset preservation
func assertBalanced(
	t *testing.T,
	tx decodedTx,
	known []utxo.Utxo,
	minted map[string]int64,
) {
	t.Helper()
	byRef := make(map[utxo.OutputRef]utxo.Utxo)
	for _, u := range known {
		byRef[u.Ref] = u
	}
	var in, out uint64
	assets := make(map[string]int64)
	for _, ref := range tx.inputs {
		u, ok := byRef[ref]
		require.True(t, ok, "unknown input %s", ref.String())
		in += u.Lovelace
		for _, a := range u.Assets {
			assets[a.Unit()] += int64(a.Quantity) // #nosec G115
		}
	}
	for unit, qty := range minted {
		assets[unit] += qty
	}
	for _, o := range tx.outputs {
		out += o.Lovelace
		for _, a := range o.Assets {
			assets[a.Unit()] -= int64(a.Quantity) // #nosec G115
		}
	}
	assert.Equal(t, in, out+tx.fee, "lovelace must balance")
	for unit, qty := range assets {
		assert.Zero(t, qty, "asset %s must balance", unit)
	}
}

func issueRequest(members []datum.Credential) IssueRequest {
	return IssueRequest{
		Title:           "Fund the 2026 budget",
		Description:     "Approve the community treasury budget for the next year",
		ExternalRefId:   "42",
		ExternalRefType: "forum",
		Image:           "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		BaseAssetName:   []byte(testBaseName),
		Deadline:        time.UnixMilli(1_800_000_000_000),
		Members:         members,
	}
}

func testMembers(env *testEnv, n int) []datum.Credential {
	ret := []datum.Credential{env.credential()}
	for i := 1; i < n; i++ {
		ret = append(ret, datum.KeyCredential(
			lcommon.Blake2b224Hash([]byte(fmt.Sprintf("member %d", i))),
		))
	}
	return ret
}

func TestIssue(t *testing.T) {
	env := newTestEnv(t)
	policyAsset := utxo.Asset{
		PolicyId: lcommon.Blake2b224Hash([]byte("other policy")),
		Name:     []byte("other"),
		Quantity: 7,
	}
	walletUtxos := []utxo.Utxo{
		{Ref: utxo.OutputRef{TxId: txId(0x0b)}, Lovelace: 50_000_000, Assets: []utxo.Asset{policyAsset}},
		{Ref: utxo.OutputRef{TxId: txId(0x0a)}, Lovelace: 10_000_000},
		{Ref: utxo.OutputRef{TxId: txId(0x0c), Index: 3}, Lovelace: 30_000_000},
	}
	env.setWalletUtxos(walletUtxos...)

	a, err := env.builder.Issue(context.Background(), issueRequest(testMembers(env, 10)))
	require.NoError(t, err)
	require.NotNil(t, a.Draft.ParamRef)
	assert.NotEqual(t, txId(0x0b), a.Draft.ParamRef.TxId, "parameter must avoid outputs with assets")

	policyId, err := contract.DeriveIdentity(env.contracts.Mint, *a.Draft.ParamRef)
	require.NoError(t, err)
	assert.Equal(t, policyId, a.Draft.PolicyId)
	assert.NotEqual(t, env.contracts.Mint.Hash(), policyId)
	mintScript, err := env.contracts.MintingPolicy(*a.Draft.ParamRef)
	require.NoError(t, err)
	assert.Equal(t, policyId, mintScript.Hash())
	var mintFlat []byte
	_, err = cbor.Decode(mintScript.Code, &mintFlat)
	require.NoError(t, err)

	tx := decodeTx(t, a)
	assert.Contains(t, tx.inputs, *a.Draft.ParamRef)
	require.GreaterOrEqual(t, len(tx.outputs), 2)

	refName := contract.ReferenceName([]byte(testBaseName))
	userName := contract.UserName([]byte(testBaseName))
	meta := tx.outputs[0]
	assert.Equal(t, env.contracts.Metadata.Address, meta.Address)
	assert.Equal(t, uint64(1), meta.Quantity(policyId, refName))
	proposal, err := datum.DecodeProposal(meta.Datum)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), proposal.TotalMembers)
	assert.Equal(t, uint64(6), proposal.RequiredVotes)
	assert.Equal(t, policyId, proposal.PolicyId)
	assert.Equal(t, []byte(testBaseName), proposal.BaseAssetName)
	assert.Equal(t, int64(1_800_000_000_000), proposal.Deadline)

	dist := tx.outputs[1]
	assert.Equal(t, env.contracts.Distribution.Address, dist.Address)
	assert.Equal(t, uint64(10), dist.Quantity(policyId, userName))
	distRec, err := datum.DecodeDistribution(dist.Datum)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), distRec.Remaining)
	assert.Equal(t, policyId, distRec.PolicyId)
	assert.Equal(t, userName, distRec.UserAssetName)
	assert.Len(t, distRec.Members, 10)

	assertBalanced(t, tx, walletUtxos, map[string]int64{
		contract.Unit(policyId, refName):  1,
		contract.Unit(policyId, userName): 10,
	})
	assert.Contains(t, tx.body, uint(9), "mint")
	assert.Contains(t, tx.body, uint(11), "script data hash")
	assert.Contains(t, tx.body, uint(13), "collateral")
	assert.Contains(t, tx.body, uint(3), "ttl")
	assert.Contains(t, tx.witness, uint(witnessKeyRedeemer))
	assert.Contains(t, tx.witness, uint(witnessKeyV2Script))
	assert.True(
		t,
		bytes.Contains(tx.witness[witnessKeyV2Script], mintFlat),
		"parameterized minting script must be attached",
	)
	assert.True(t, tx.metadata)
	assert.Equal(t, a.Fee, tx.fee)

	_, subCh := env.eventBus.Subscribe(event.TxSubmittedEventType)
	txHash, err := env.builder.Submit(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, a.TxHash, txHash)
	require.Len(t, env.submitter.submitted, 1)

	stored, err := env.params.Get(policyId)
	require.NoError(t, err)
	assert.Equal(t, *a.Draft.ParamRef, stored)

	select {
	case evt := <-subCh:
		data := evt.Data.(event.TxSubmittedEvent)
		assert.Equal(t, event.TxKindIssue, data.Kind)
		assert.Equal(t, txHash, data.TxHash)
		assert.Equal(t, policyId.String(), data.PolicyId)
		assert.Equal(t, a.Draft.ParamRef.String(), data.ParamRef)
	case <-time.After(time.Second):
		t.Fatal("no submission event")
	}
}

func TestIssueTruncatesText(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 100_000_000})
	req := issueRequest(testMembers(env, 2))
	req.Title = string(bytes.Repeat([]byte("é"), 40))
	a, err := env.builder.Issue(context.Background(), req)
	require.NoError(t, err)
	tx := decodeTx(t, a)
	proposal, err := datum.DecodeProposal(tx.outputs[0].Datum)
	require.NoError(t, err)
	assert.Len(t, proposal.Title, 64)
	for _, chunk := range a.Draft.Metadata.Message {
		assert.LessOrEqual(t, len(chunk), datum.MaxTextBytes)
	}
}

func TestIssueValidation(t *testing.T) {
	env := newTestEnv(t)
	req := issueRequest(nil)
	_, err := env.builder.Issue(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = issueRequest(testMembers(env, 1))
	req.BaseAssetName = bytes.Repeat([]byte{'x'}, contract.MaxBaseNameBytes+1)
	_, err = env.builder.Issue(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIssueInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 1_000_000})
	_, err := env.builder.Issue(context.Background(), issueRequest(testMembers(env, 3)))
	assert.ErrorIs(t, err, utxo.ErrInsufficientFunds)
}

func TestIssueIdentityMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.builder.policies = skewedPolicies{env.contracts}
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 100_000_000})
	_, err := env.builder.Issue(context.Background(), issueRequest(testMembers(env, 3)))
	require.ErrorIs(t, err, contract.ErrIdentityMismatch)
	var mismatch *contract.IdentityMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NotEqual(t, mismatch.Expected, mismatch.Derived)
}

func TestVerifyIssueDetectsTamperedRecord(t *testing.T) {
	env := newTestEnv(t, WithBackend(NewPlanBackend()))
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 100_000_000})
	a, err := env.builder.Issue(context.Background(), issueRequest(testMembers(env, 3)))
	require.NoError(t, err)
	require.NoError(t, env.builder.VerifyIssue(a.Draft))

	proposal, err := datum.DecodeProposal(a.Draft.Outputs[0].Datum)
	require.NoError(t, err)
	proposal.PolicyId = lcommon.Blake2b224Hash([]byte("someone else"))
	a.Draft.Outputs[0].Datum, err = datum.Encode(proposal)
	require.NoError(t, err)
	assert.ErrorIs(t, env.builder.VerifyIssue(a.Draft), contract.ErrIdentityMismatch)
}

// distributionUtxo places a distribution output for env's proposal
func distributionUtxo(
	t *testing.T,
	env *testEnv,
	policyId lcommon.Blake2b224,
	members []datum.Credential,
	remaining uint64,
	held uint64,
) utxo.Utxo {
	t.Helper()
	userName := contract.UserName([]byte(testBaseName))
	raw, err := datum.Encode(datum.DistributionRecord{
		Members:       members,
		PolicyId:      policyId,
		UserAssetName: userName,
		Remaining:     remaining,
	})
	require.NoError(t, err)
	return utxo.Utxo{
		Ref:      utxo.OutputRef{TxId: txId(0xd0)},
		Address:  env.contracts.Distribution.Address,
		Lovelace: 3_000_000,
		Assets: []utxo.Asset{
			{PolicyId: policyId, Name: userName, Quantity: held},
		},
		Datum: raw,
	}
}

func TestClaimSequenceConservesTokens(t *testing.T) {
	env := newTestEnv(t)
	walletUtxos := []utxo.Utxo{
		{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000},
		{Ref: utxo.OutputRef{TxId: txId(0x02)}, Lovelace: 8_000_000},
	}
	env.setWalletUtxos(walletUtxos...)
	policyId := lcommon.Blake2b224Hash([]byte("claim policy"))
	userName := contract.UserName([]byte(testBaseName))
	const n = 3
	distAddr := env.contracts.Distribution.Address
	env.idx.utxos[distAddr] = []utxo.Utxo{
		distributionUtxo(t, env, policyId, testMembers(env, n), n, n),
	}

	var claimed uint64
	for i := range n {
		current := env.idx.utxos[distAddr][0]
		a, err := env.builder.Claim(context.Background(), ClaimRequest{
			PolicyId:      policyId,
			BaseAssetName: []byte(testBaseName),
		})
		require.NoError(t, err, "claim %d", i)
		tx := decodeTx(t, a)
		assertBalanced(t, tx, append([]utxo.Utxo{current}, walletUtxos...), nil)
		assert.Contains(t, tx.inputs, current.Ref)
		assert.Contains(t, tx.body, uint(14), "required signer")
		assert.Contains(t, tx.witness, uint(witnessKeyRedeemer))

		var next []utxo.Utxo
		for _, o := range tx.outputs {
			qty := o.Quantity(policyId, userName)
			switch o.Address {
			case env.walletAddress():
				if o.Datum == nil && qty == 1 {
					claimed++
				}
			case distAddr:
				rec, err := datum.DecodeDistribution(o.Datum)
				require.NoError(t, err)
				assert.Equal(t, uint64(n-i-1), rec.Remaining)
				assert.Equal(t, rec.Remaining, qty)
				next = append(next, o)
			}
		}
		if i == n-1 {
			assert.Empty(t, next, "last claim must not recreate the distribution output")
		} else {
			require.Len(t, next, 1)
		}
		env.idx.utxos[distAddr] = next
	}
	assert.Equal(t, uint64(n), claimed)

	_, err := env.builder.Claim(context.Background(), ClaimRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
	})
	assert.ErrorIs(t, err, ErrNoDistribution)
}

func TestClaimNotAMember(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000})
	policyId := lcommon.Blake2b224Hash([]byte("claim policy"))
	others := testMembers(env, 4)[1:]
	env.idx.utxos[env.contracts.Distribution.Address] = []utxo.Utxo{
		distributionUtxo(t, env, policyId, others, 3, 3),
	}
	_, err := env.builder.Claim(context.Background(), ClaimRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
	})
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestClaimHeldMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000})
	policyId := lcommon.Blake2b224Hash([]byte("claim policy"))
	env.idx.utxos[env.contracts.Distribution.Address] = []utxo.Utxo{
		distributionUtxo(t, env, policyId, testMembers(env, 5), 3, 5),
	}
	_, err := env.builder.Claim(context.Background(), ClaimRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
	})
	assert.ErrorIs(t, err, ErrTokenConservation)
}

func TestClaimSkipsUndecodableDistribution(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000})
	policyId := lcommon.Blake2b224Hash([]byte("claim policy"))
	bad := distributionUtxo(t, env, policyId, testMembers(env, 2), 2, 2)
	bad.Ref = utxo.OutputRef{TxId: txId(0xee)}
	bad.Datum = []byte{0xd8, 0x79, 0x80}
	good := distributionUtxo(t, env, policyId, testMembers(env, 2), 2, 2)
	env.idx.utxos[env.contracts.Distribution.Address] = []utxo.Utxo{bad, good}
	a, err := env.builder.Claim(context.Background(), ClaimRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
	})
	require.NoError(t, err)
	assert.Equal(t, good.Ref, a.Draft.Inputs[0].Utxo.Ref)
}

func TestClaimIndexerUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.idx.err = errors.New("connection refused")
	_, err := env.builder.Claim(context.Background(), ClaimRequest{
		PolicyId:      lcommon.Blake2b224Hash([]byte("claim policy")),
		BaseAssetName: []byte(testBaseName),
	})
	assert.ErrorIs(t, err, indexer.ErrRemoteUnavailable)
}

func TestCheckConservation(t *testing.T) {
	policyId := lcommon.Blake2b224Hash([]byte("policy"))
	name := contract.UserName([]byte(testBaseName))
	d := &Draft{
		Inputs: []Input{{Utxo: utxo.Utxo{Assets: []utxo.Asset{
			{PolicyId: policyId, Name: name, Quantity: 4},
		}}}},
		Outputs: []Output{
			{Assets: []utxo.Asset{{PolicyId: policyId, Name: name, Quantity: 1}}},
			{Assets: []utxo.Asset{{PolicyId: policyId, Name: name, Quantity: 2}}},
		},
	}
	err := CheckConservation(d, policyId, name)
	require.ErrorIs(t, err, ErrTokenConservation)
	var conservation *ConservationError
	require.True(t, errors.As(err, &conservation))
	assert.Equal(t, uint64(4), conservation.Before)
	assert.Equal(t, uint64(3), conservation.After)

	d.Outputs[1].Assets[0].Quantity = 3
	assert.NoError(t, CheckConservation(d, policyId, name))
}

func TestVote(t *testing.T) {
	env := newTestEnv(t)
	policyId := lcommon.Blake2b224Hash([]byte("vote policy"))
	userName := contract.UserName([]byte(testBaseName))
	walletUtxos := []utxo.Utxo{
		{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000},
		{
			Ref:      utxo.OutputRef{TxId: txId(0x02)},
			Lovelace: 1_500_000,
			Assets: []utxo.Asset{
				{PolicyId: policyId, Name: userName, Quantity: 1},
			},
		},
	}
	env.setWalletUtxos(walletUtxos...)
	a, err := env.builder.Vote(context.Background(), VoteRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
		Choice:        datum.VoteNo,
	})
	require.NoError(t, err)
	tx := decodeTx(t, a)
	assertBalanced(t, tx, walletUtxos, nil)
	vote := tx.outputs[0]
	assert.Equal(t, env.contracts.Voting.Address, vote.Address)
	assert.Equal(t, uint64(1), vote.Quantity(policyId, userName))
	choice, err := datum.DecodeVote(vote.Datum)
	require.NoError(t, err)
	assert.Equal(t, datum.VoteNo, choice)
	assert.NotContains(t, tx.witness, uint(witnessKeyRedeemer))
	assert.NotContains(t, tx.body, uint(13), "no collateral without scripts")
	assert.Equal(t, []string{"Vote: no"}, a.Draft.Metadata.Message)
}

func TestVoteNoToken(t *testing.T) {
	env := newTestEnv(t)
	env.setWalletUtxos(utxo.Utxo{Ref: utxo.OutputRef{TxId: txId(0x01)}, Lovelace: 20_000_000})
	_, err := env.builder.Vote(context.Background(), VoteRequest{
		PolicyId:      lcommon.Blake2b224Hash([]byte("vote policy")),
		BaseAssetName: []byte(testBaseName),
		Choice:        datum.VoteYes,
	})
	assert.ErrorIs(t, err, ErrNoVotingToken)
}

func TestPlanBackend(t *testing.T) {
	env := newTestEnv(t, WithBackend(NewPlanBackend()))
	policyId := lcommon.Blake2b224Hash([]byte("vote policy"))
	userName := contract.UserName([]byte(testBaseName))
	env.setWalletUtxos(utxo.Utxo{
		Ref:      utxo.OutputRef{TxId: txId(0x02)},
		Lovelace: 1_500_000,
		Assets: []utxo.Asset{
			{PolicyId: policyId, Name: userName, Quantity: 1},
		},
	})
	a, err := env.builder.Vote(context.Background(), VoteRequest{
		PolicyId:      policyId,
		BaseAssetName: []byte(testBaseName),
		Choice:        datum.VoteYes,
	})
	require.NoError(t, err)
	assert.False(t, a.Signable())
	assert.Equal(t, BackendPlan, a.Backend)
	assert.Contains(t, string(a.Plan), `"kind":"vote"`)
	assert.Contains(t, string(a.Plan), contract.Unit(policyId, userName))

	_, err = env.builder.Submit(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotSignable)
}

func TestSubmitCanceled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.builder.Submit(ctx, &Assembled{
		Draft:  &Draft{Kind: event.TxKindVote},
		TxCbor: []byte{0x80},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.submitter.submitted)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendCbor, b.Name())
	b, err = NewBackend(BackendPlan)
	require.NoError(t, err)
	assert.Equal(t, BackendPlan, b.Name())
	_, err = NewBackend("lucid")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
