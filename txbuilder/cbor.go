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
	"encoding/hex"
	"fmt"
	"math"
	"slices"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/utxo"
	"golang.org/x/crypto/blake2b"
)

const (
	DefaultCollateralLovelace = 5_000_000

	// per-output overhead in the minimum lovelace calculation
	minUtxoOverhead          = 160
	defaultCollateralPercent = 150
	maxBalanceRounds         = 8

	redeemerTagSpend = 0
	redeemerTagMint  = 1

	witnessKeyVkey     = 0
	witnessKeyV1Script = 3
	witnessKeyRedeemer = 5
	witnessKeyV2Script = 6
	witnessKeyV3Script = 7
)

// DefaultExUnits is the budget given to each redeemer
var DefaultExUnits = ExUnits{Mem: 3_500_000, Steps: 1_500_000_000}

// CborBackend assembles Conway era transactions. Execution units are not
// evaluated; every redeemer gets the configured budget.
type CborBackend struct {
	selector           *utxo.Selector
	exUnits            ExUnits
	collateralLovelace uint64
}

type CborBackendOptionFunc func(*CborBackend)

// WithSelector sets the selector used for fee inputs and collateral
func WithSelector(selector *utxo.Selector) CborBackendOptionFunc {
	return func(b *CborBackend) {
		b.selector = selector
	}
}

// WithExUnits sets the execution budget of each redeemer
func WithExUnits(exUnits ExUnits) CborBackendOptionFunc {
	return func(b *CborBackend) {
		b.exUnits = exUnits
	}
}

// WithCollateralLovelace sets the minimum size of the collateral input
func WithCollateralLovelace(lovelace uint64) CborBackendOptionFunc {
	return func(b *CborBackend) {
		b.collateralLovelace = lovelace
	}
}

func NewCborBackend(opts ...CborBackendOptionFunc) *CborBackend {
	b := &CborBackend{
		exUnits:            DefaultExUnits,
		collateralLovelace: DefaultCollateralLovelace,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.selector == nil {
		b.selector = utxo.NewSelector()
	}
	return b
}

func (b *CborBackend) Name() string {
	return BackendCbor
}

// preparedOutput is an Output with its address decoded and lovelace fitted
type preparedOutput struct {
	Output
	addr []byte
}

// txParts is everything that goes into one encoding attempt
type txParts struct {
	inputs       []Input
	outputs      []preparedOutput
	collateral   *utxo.Utxo
	changeAddr   []byte
	fee          uint64
	dummyWitness int
}

func (b *CborBackend) Assemble(
	ctx context.Context,
	d *Draft,
	pp indexer.ProtocolParams,
) (*Assembled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ChangeAddress == "" {
		return nil, invalidRequest("no change address")
	}
	changeAddr, err := addressBytes(d.ChangeAddress)
	if err != nil {
		return nil, err
	}
	outputs := make([]preparedOutput, 0, len(d.Outputs)+1)
	var outLovelace uint64
	for _, o := range d.Outputs {
		addr, err := addressBytes(o.Address)
		if err != nil {
			return nil, err
		}
		o.Lovelace, err = fitLovelace(addr, o.Lovelace, o.Assets, o.Datum, pp)
		if err != nil {
			return nil, err
		}
		outLovelace += o.Lovelace
		outputs = append(outputs, preparedOutput{Output: o, addr: addr})
	}
	var collateral *utxo.Utxo
	if d.hasScripts() {
		col, err := b.selector.SelectCollateral(d.Funding, b.collateralLovelace)
		if err != nil {
			return nil, fmt.Errorf("select collateral: %w", err)
		}
		collateral = &col
	}
	var explicitLovelace uint64
	for _, in := range d.Inputs {
		explicitLovelace += in.Utxo.Lovelace
	}
	exclude := d.inputRefs()
	fee := pp.MinFeeB
	var extra uint64
	for range maxBalanceRounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputs := slices.Clone(d.Inputs)
		target := outLovelace + fee + extra
		if target > explicitLovelace {
			sel, err := b.selector.SelectCoins(
				d.Funding,
				target-explicitLovelace,
				exclude...,
			)
			if err != nil {
				return nil, fmt.Errorf("select fee inputs: %w", err)
			}
			for _, u := range sel.Inputs {
				inputs = append(inputs, Input{Utxo: u})
			}
		}
		var inLovelace uint64
		for _, in := range inputs {
			inLovelace += in.Utxo.Lovelace
		}
		if inLovelace < outLovelace+fee {
			return nil, fmt.Errorf(
				"%w: %d lovelace in, %d out plus %d fee",
				ErrUnbalanced,
				inLovelace,
				outLovelace,
				fee,
			)
		}
		changeAssets, err := assetChange(inputs, d.Mints, outputs)
		if err != nil {
			return nil, err
		}
		changeLovelace := inLovelace - outLovelace - fee
		parts := txParts{
			inputs:       inputs,
			outputs:      outputs,
			collateral:   collateral,
			changeAddr:   changeAddr,
			fee:          fee,
			dummyWitness: 1 + len(d.RequiredSigners),
		}
		if changeLovelace > 0 || len(changeAssets) > 0 {
			minChange, err := fitLovelace(changeAddr, 0, changeAssets, nil, pp)
			if err != nil {
				return nil, err
			}
			if changeLovelace < minChange {
				extra += minChange - changeLovelace
				continue
			}
			parts.outputs = append(slices.Clone(outputs), preparedOutput{
				Output: Output{
					Address:  d.ChangeAddress,
					Lovelace: changeLovelace,
					Assets:   changeAssets,
				},
				addr: changeAddr,
			})
		}
		estimate, _, err := b.encode(d, parts, pp)
		if err != nil {
			return nil, err
		}
		if pp.MaxTxSize > 0 && uint64(len(estimate)) > pp.MaxTxSize {
			return nil, fmt.Errorf(
				"transaction size %d exceeds maximum %d",
				len(estimate),
				pp.MaxTxSize,
			)
		}
		needed := b.fee(d, len(estimate), pp)
		if needed > fee {
			fee = needed
			continue
		}
		parts.dummyWitness = 0
		txCbor, body, err := b.encode(d, parts, pp)
		if err != nil {
			return nil, err
		}
		bodyHash := blake2b.Sum256(body)
		return &Assembled{
			Draft:   d,
			Backend: BackendCbor,
			TxCbor:  txCbor,
			TxHash:  hex.EncodeToString(bodyHash[:]),
			Fee:     fee,
		}, nil
	}
	return nil, fmt.Errorf("%w: fee did not converge", ErrUnbalanced)
}

func (b *CborBackend) redeemerCount(d *Draft) int {
	count := len(d.Mints)
	for _, in := range d.Inputs {
		if in.isScript() {
			count++
		}
	}
	return count
}

func (b *CborBackend) fee(d *Draft, size int, pp indexer.ProtocolParams) uint64 {
	n := uint64(b.redeemerCount(d)) // #nosec G115
	exFee := math.Ceil(
		pp.PriceMem*float64(n*b.exUnits.Mem) +
			pp.PriceStep*float64(n*b.exUnits.Steps),
	)
	return pp.MinFeeA*uint64(size) + pp.MinFeeB + uint64(exFee) // #nosec G115
}

// fitLovelace raises lovelace to the minimum the ledger requires for the output
func fitLovelace(
	addr []byte,
	lovelace uint64,
	assets []utxo.Asset,
	datumCbor []byte,
	pp indexer.ProtocolParams,
) (uint64, error) {
	for range 3 {
		raw, err := cbor.Encode(outputCbor(addr, lovelace, assets, datumCbor))
		if err != nil {
			return 0, fmt.Errorf("encode output: %w", err)
		}
		required := pp.CoinsPerUtxoByte * (minUtxoOverhead + uint64(len(raw)))
		if lovelace >= required {
			break
		}
		lovelace = required
	}
	return lovelace, nil
}

func outputCbor(
	addr []byte,
	lovelace uint64,
	assets []utxo.Asset,
	datumCbor []byte,
) orderedMap {
	var value any = lovelace
	if len(assets) > 0 {
		bundle := newAssetBundle[uint64]()
		for _, a := range assets {
			bundle.add(a.PolicyId, a.Name, a.Quantity)
		}
		if !bundle.empty() {
			value = []any{lovelace, bundle.cbor()}
		}
	}
	ret := orderedMap{
		{Key: uint64(0), Value: addr},
		{Key: uint64(1), Value: value},
	}
	if datumCbor != nil {
		ret = append(ret, mapEntry{
			Key: uint64(2),
			Value: []any{
				uint64(1),
				cbor.Tag{Number: cborTagData, Content: datumCbor},
			},
		})
	}
	return ret
}

// assetChange returns the native assets left over after outputs are paid
func assetChange(
	inputs []Input,
	mints []Mint,
	outputs []preparedOutput,
) ([]utxo.Asset, error) {
	bundle := newAssetBundle[int64]()
	for _, in := range inputs {
		for _, a := range in.Utxo.Assets {
			bundle.add(a.PolicyId, a.Name, int64(a.Quantity)) // #nosec G115
		}
	}
	for _, m := range mints {
		for _, a := range m.Assets {
			bundle.add(m.PolicyId, a.Name, a.Quantity)
		}
	}
	for _, o := range outputs {
		for _, a := range o.Assets {
			bundle.add(a.PolicyId, a.Name, -int64(a.Quantity)) // #nosec G115
		}
	}
	for _, policyId := range bundle.sortedPolicies() {
		for name, qty := range bundle.names[policyId] {
			if qty < 0 {
				return nil, fmt.Errorf(
					"%w: missing %d of %s",
					ErrUnbalanced,
					-qty,
					contract.Unit(policyId, []byte(name)),
				)
			}
		}
	}
	return bundle.assets(), nil
}

// encode returns the full transaction and its body. With dummyWitness set,
// placeholder vkey witnesses are included so the size covers signatures.
func (b *CborBackend) encode(
	d *Draft,
	parts txParts,
	pp indexer.ProtocolParams,
) ([]byte, []byte, error) {
	inputs := slices.Clone(parts.inputs)
	slices.SortFunc(inputs, func(x, y Input) int {
		return compareRefs(x.Utxo.Ref, y.Utxo.Ref)
	})
	mints := slices.Clone(d.Mints)
	slices.SortFunc(mints, func(x, y Mint) int {
		return bytes.Compare(x.PolicyId[:], y.PolicyId[:])
	})

	body := orderedMap{}
	inputRefs := make([]any, 0, len(inputs))
	for _, in := range inputs {
		inputRefs = append(inputRefs, encodeRef(in.Utxo.Ref))
	}
	body = append(body, mapEntry{Key: uint64(0), Value: cborSet(inputRefs)})
	outputs := make([]any, 0, len(parts.outputs))
	for _, o := range parts.outputs {
		outputs = append(outputs, outputCbor(o.addr, o.Lovelace, o.Assets, o.Datum))
	}
	body = append(
		body,
		mapEntry{Key: uint64(1), Value: outputs},
		mapEntry{Key: uint64(2), Value: parts.fee},
	)
	if d.ValidTo > 0 {
		body = append(body, mapEntry{Key: uint64(3), Value: d.ValidTo})
	}
	var auxCbor []byte
	if !d.Metadata.empty() {
		var err error
		auxCbor, err = cbor.Encode(d.Metadata.cbor())
		if err != nil {
			return nil, nil, fmt.Errorf("encode metadata: %w", err)
		}
		auxHash := blake2b.Sum256(auxCbor)
		body = append(body, mapEntry{Key: uint64(7), Value: auxHash[:]})
	}
	if d.ValidFrom > 0 {
		body = append(body, mapEntry{Key: uint64(8), Value: d.ValidFrom})
	}
	if len(mints) > 0 {
		bundle := newAssetBundle[int64]()
		for _, m := range mints {
			for _, a := range m.Assets {
				bundle.add(m.PolicyId, a.Name, a.Quantity)
			}
		}
		body = append(body, mapEntry{Key: uint64(9), Value: bundle.cbor()})
	}

	witnessSet := orderedMap{}
	if parts.dummyWitness > 0 {
		dummies := make([]lcommon.VkeyWitness, 0, parts.dummyWitness)
		for range parts.dummyWitness {
			dummies = append(dummies, lcommon.VkeyWitness{
				Vkey:      make([]byte, 32),
				Signature: make([]byte, 64),
			})
		}
		witnessSet = append(
			witnessSet,
			mapEntry{Key: uint64(witnessKeyVkey), Value: dummies},
		)
	}
	scripts, languages, err := collectScripts(inputs, mints)
	if err != nil {
		return nil, nil, err
	}
	if v1 := scripts[contract.PlutusV1]; len(v1) > 0 {
		witnessSet = append(
			witnessSet,
			mapEntry{Key: uint64(witnessKeyV1Script), Value: v1},
		)
	}
	redeemers := b.redeemers(inputs, mints)
	if len(redeemers) > 0 {
		rawRedeemers, err := cbor.Encode(redeemers)
		if err != nil {
			return nil, nil, fmt.Errorf("encode redeemers: %w", err)
		}
		witnessSet = append(witnessSet, mapEntry{
			Key:   uint64(witnessKeyRedeemer),
			Value: cbor.RawMessage(rawRedeemers),
		})
		views, err := languageViews(languages, pp)
		if err != nil {
			return nil, nil, err
		}
		rawViews, err := cbor.Encode(views)
		if err != nil {
			return nil, nil, fmt.Errorf("encode language views: %w", err)
		}
		scriptDataHash := blake2b.Sum256(slices.Concat(rawRedeemers, rawViews))
		body = append(
			body,
			mapEntry{Key: uint64(11), Value: scriptDataHash[:]},
		)
	}
	if v2 := scripts[contract.PlutusV2]; len(v2) > 0 {
		witnessSet = append(
			witnessSet,
			mapEntry{Key: uint64(witnessKeyV2Script), Value: v2},
		)
	}
	if v3 := scripts[contract.PlutusV3]; len(v3) > 0 {
		witnessSet = append(
			witnessSet,
			mapEntry{Key: uint64(witnessKeyV3Script), Value: v3},
		)
	}

	if parts.collateral != nil {
		col := parts.collateral
		body = append(body, mapEntry{
			Key:   uint64(13),
			Value: cborSet([]any{encodeRef(col.Ref)}),
		})
	}
	if len(d.RequiredSigners) > 0 {
		signers := make([]any, 0, len(d.RequiredSigners))
		for _, s := range d.RequiredSigners {
			signers = append(signers, s.Bytes())
		}
		body = append(body, mapEntry{Key: uint64(14), Value: cborSet(signers)})
	}
	if parts.collateral != nil {
		entries, err := collateralReturn(parts, pp)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, entries...)
	}
	if refs := referenceInputs(d, inputs); len(refs) > 0 {
		encoded := make([]any, 0, len(refs))
		for _, ref := range refs {
			encoded = append(encoded, encodeRef(ref))
		}
		body = append(body, mapEntry{Key: uint64(18), Value: cborSet(encoded)})
	}

	rawBody, err := cbor.Encode(body)
	if err != nil {
		return nil, nil, fmt.Errorf("encode transaction body: %w", err)
	}
	var aux any
	if auxCbor != nil {
		aux = cbor.RawMessage(auxCbor)
	}
	txCbor, err := cbor.Encode([]any{
		cbor.RawMessage(rawBody),
		witnessSet,
		true,
		aux,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode transaction: %w", err)
	}
	return txCbor, rawBody, nil
}

// redeemers lists spend redeemers by sorted input position, then mint
// redeemers by sorted policy position
func (b *CborBackend) redeemers(inputs []Input, mints []Mint) []any {
	var ret []any
	units := []any{b.exUnits.Mem, b.exUnits.Steps}
	for idx, in := range inputs {
		if !in.isScript() {
			continue
		}
		ret = append(ret, []any{
			uint64(redeemerTagSpend),
			uint64(idx), // #nosec G115
			cbor.RawMessage(in.Redeemer),
			units,
		})
	}
	for idx, m := range mints {
		ret = append(ret, []any{
			uint64(redeemerTagMint),
			uint64(idx), // #nosec G115
			cbor.RawMessage(m.Redeemer),
			units,
		})
	}
	return ret
}

// collectScripts groups attached scripts by language and reports every
// language a redeemer runs under
func collectScripts(
	inputs []Input,
	mints []Mint,
) (map[contract.PlutusVersion][][]byte, []contract.PlutusVersion, error) {
	scripts := make(map[contract.PlutusVersion][][]byte)
	seen := make(map[lcommon.Blake2b224]bool)
	var languages []contract.PlutusVersion
	addLanguage := func(v contract.PlutusVersion) {
		if !slices.Contains(languages, v) {
			languages = append(languages, v)
		}
	}
	addScript := func(t contract.Template) {
		addLanguage(t.Version)
		hash := t.Hash()
		if seen[hash] {
			return
		}
		seen[hash] = true
		scripts[t.Version] = append(scripts[t.Version], t.Code)
	}
	for _, in := range inputs {
		if !in.isScript() {
			continue
		}
		switch {
		case in.Script != nil:
			addScript(*in.Script)
		case in.ScriptRef != nil:
			v := in.ScriptVersion
			if v == 0 {
				v = contract.PlutusV2
			}
			addLanguage(v)
		default:
			return nil, nil, invalidRequest(
				"script input %s has neither script nor reference",
				in.Utxo.Ref.String(),
			)
		}
	}
	for _, m := range mints {
		addScript(m.Script)
	}
	slices.Sort(languages)
	return scripts, languages, nil
}

// languageViews encodes the cost models of the languages in use
func languageViews(
	languages []contract.PlutusVersion,
	pp indexer.ProtocolParams,
) (orderedMap, error) {
	ret := make(orderedMap, 0, len(languages))
	for _, v := range languages {
		if v == contract.PlutusV1 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLang, v)
		}
		costModel, ok := pp.CostModels[uint8(v)]
		if !ok {
			return nil, fmt.Errorf("no cost model for plutus %s", v)
		}
		ret = append(ret, mapEntry{
			Key:   uint64(v) - 1,
			Value: costModel,
		})
	}
	return ret, nil
}

// collateralReturn returns the total collateral and, when the remainder
// can stand as an output, the collateral return output
func collateralReturn(
	parts txParts,
	pp indexer.ProtocolParams,
) ([]mapEntry, error) {
	col := parts.collateral
	percent := pp.CollateralPercent
	if percent == 0 {
		percent = defaultCollateralPercent
	}
	total := (parts.fee*percent + 99) / 100
	if total > col.Lovelace {
		return nil, fmt.Errorf(
			"collateral input holds %d lovelace, %d required",
			col.Lovelace,
			total,
		)
	}
	remainder := col.Lovelace - total
	minReturn, err := fitLovelace(parts.changeAddr, 0, nil, nil, pp)
	if err != nil {
		return nil, err
	}
	if remainder < minReturn {
		return []mapEntry{
			{Key: uint64(17), Value: col.Lovelace},
		}, nil
	}
	return []mapEntry{
		{Key: uint64(16), Value: outputCbor(parts.changeAddr, remainder, nil, nil)},
		{Key: uint64(17), Value: total},
	}, nil
}

// referenceInputs merges the draft's reference inputs with reference scripts
func referenceInputs(d *Draft, inputs []Input) []utxo.OutputRef {
	refs := slices.Clone(d.ReferenceInputs)
	for _, in := range inputs {
		if in.isScript() && in.Script == nil && in.ScriptRef != nil &&
			!slices.Contains(refs, *in.ScriptRef) {
			refs = append(refs, *in.ScriptRef)
		}
	}
	slices.SortFunc(refs, compareRefs)
	return refs
}
