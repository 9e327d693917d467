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

// Package txbuilder assembles the issue, claim and vote transactions of the
// voting protocol and submits them through a wallet.
package txbuilder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/event"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/utxo"
	"github.com/blinklabs-io/quorum/wallet"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultValidity     = 2 * time.Hour
	// DefaultParamLovelace is the smallest output accepted as the one-time
	// minting parameter
	DefaultParamLovelace = 2_000_000
)

// PolicySource derives the one-time minting policy for an output reference
type PolicySource interface {
	PolicyFor(ref utxo.OutputRef) (lcommon.Blake2b224, error)
	MintingPolicy(ref utxo.OutputRef) (contract.Template, error)
}

// ParamStore records the parameter each issued policy was derived from
type ParamStore interface {
	Put(policyId lcommon.Blake2b224, ref utxo.OutputRef) error
}

// Builder turns protocol actions into transactions. It holds no mutable
// state between calls.
type Builder struct {
	logger       *slog.Logger
	contracts    *contract.Contracts
	policies     PolicySource
	wallet       wallet.Wallet
	indexer      indexer.Indexer
	backend      Backend
	selector     *utxo.Selector
	params       ParamStore
	eventBus     *event.EventBus
	promRegistry prometheus.Registerer
	metrics      *builderMetrics
	now          func() time.Time
	slotConfig   indexer.SlotConfig
	queryTimeout time.Duration
	validity     time.Duration
	paramMin     uint64
}

type BuilderOptionFunc func(*Builder)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BuilderOptionFunc {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithBackend sets the assembly backend. The default is the cbor backend.
func WithBackend(backend Backend) BuilderOptionFunc {
	return func(b *Builder) {
		b.backend = backend
	}
}

// WithUtxoSelector sets the selector used for the one-time parameter
func WithUtxoSelector(selector *utxo.Selector) BuilderOptionFunc {
	return func(b *Builder) {
		b.selector = selector
	}
}

// WithPolicySource overrides the contracts as the source of minting policies
func WithPolicySource(policies PolicySource) BuilderOptionFunc {
	return func(b *Builder) {
		b.policies = policies
	}
}

// WithParamStore persists the parameter of every submitted issue transaction
func WithParamStore(params ParamStore) BuilderOptionFunc {
	return func(b *Builder) {
		b.params = params
	}
}

// WithEventBus specifies the event bus for submission events
func WithEventBus(eventBus *event.EventBus) BuilderOptionFunc {
	return func(b *Builder) {
		b.eventBus = eventBus
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) BuilderOptionFunc {
	return func(b *Builder) {
		b.promRegistry = registry
	}
}

// WithSlotConfig sets the slot schedule used for validity intervals. Without
// it transactions carry no upper validity bound.
func WithSlotConfig(slotConfig indexer.SlotConfig) BuilderOptionFunc {
	return func(b *Builder) {
		b.slotConfig = slotConfig
	}
}

// WithQueryTimeout bounds every indexer and wallet query
func WithQueryTimeout(timeout time.Duration) BuilderOptionFunc {
	return func(b *Builder) {
		b.queryTimeout = timeout
	}
}

// WithValidity sets how long after assembly a transaction stays valid
func WithValidity(validity time.Duration) BuilderOptionFunc {
	return func(b *Builder) {
		b.validity = validity
	}
}

// WithParamLovelace sets the minimum value of the one-time parameter output
func WithParamLovelace(lovelace uint64) BuilderOptionFunc {
	return func(b *Builder) {
		b.paramMin = lovelace
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) BuilderOptionFunc {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(
	contracts *contract.Contracts,
	w wallet.Wallet,
	idx indexer.Indexer,
	opts ...BuilderOptionFunc,
) (*Builder, error) {
	if contracts == nil {
		return nil, errors.New("no contracts configured")
	}
	b := &Builder{
		contracts:    contracts,
		policies:     contracts,
		wallet:       w,
		indexer:      idx,
		queryTimeout: DefaultQueryTimeout,
		validity:     DefaultValidity,
		paramMin:     DefaultParamLovelace,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	b.logger = b.logger.With("component", "txbuilder")
	if b.selector == nil {
		b.selector = utxo.NewSelector()
	}
	if b.backend == nil {
		b.backend = NewCborBackend(WithSelector(b.selector))
	}
	if b.promRegistry != nil {
		b.initMetrics(b.promRegistry)
	}
	return b, nil
}

// Backend returns the assembly backend in use
func (b *Builder) Backend() Backend {
	return b.backend
}

type IssueRequest struct {
	Deadline        time.Time
	Title           string
	Description     string
	ExternalRefId   string
	ExternalRefType string
	Image           string
	Message         string
	BaseAssetName   []byte
	Members         []datum.Credential
}

type ClaimRequest struct {
	Message       string
	BaseAssetName []byte
	PolicyId      lcommon.Blake2b224
}

type VoteRequest struct {
	Message       string
	BaseAssetName []byte
	Choice        datum.Vote
	PolicyId      lcommon.Blake2b224
}

func (r IssueRequest) validate() error {
	switch {
	case r.Title == "":
		return invalidRequest("title is required")
	case len(r.Members) == 0:
		return invalidRequest("at least one member is required")
	case len(r.BaseAssetName) == 0:
		return invalidRequest("base asset name is required")
	case len(r.BaseAssetName) > contract.MaxBaseNameBytes:
		return invalidRequest(
			"base asset name has %d bytes, limit is %d",
			len(r.BaseAssetName),
			contract.MaxBaseNameBytes,
		)
	case r.Deadline.IsZero():
		return invalidRequest("deadline is required")
	}
	return nil
}

// Issue mints the reference token and one user token per member under a
// policy derived from a freshly selected wallet output
func (b *Builder) Issue(ctx context.Context, req IssueRequest) (*Assembled, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	changeAddr, utxos, err := b.walletState(ctx)
	if err != nil {
		return nil, err
	}
	param, err := b.selector.SelectOne(utxos, b.paramMin, true)
	if err != nil {
		return nil, fmt.Errorf("select parameter output: %w", err)
	}
	policyId, err := b.policies.PolicyFor(param.Ref)
	if err != nil {
		return nil, err
	}
	script, err := b.policies.MintingPolicy(param.Ref)
	if err != nil {
		return nil, err
	}
	members := uint64(len(req.Members))
	base := slices.Clone(req.BaseAssetName)
	refName := contract.ReferenceName(base)
	userName := contract.UserName(base)
	title := datum.TruncateText(req.Title, datum.MaxTextBytes)
	proposal := datum.ProposalRecord{
		Title:               []byte(title),
		Description:         []byte(datum.TruncateText(req.Description, datum.MaxTextBytes)),
		ExternalRefId:       []byte(datum.TruncateText(req.ExternalRefId, datum.MaxTextBytes)),
		ExternalRefType:     []byte(datum.TruncateText(req.ExternalRefType, datum.MaxTextBytes)),
		Deadline:            req.Deadline.UnixMilli(),
		TotalMembers:        members,
		RequiredVotes:       datum.RequiredVotesFor(members),
		PolicyId:            policyId,
		BaseAssetName:       base,
		MetadataAddress:     []byte(b.contracts.Metadata.Address),
		DistributionAddress: []byte(b.contracts.Distribution.Address),
	}
	distribution := datum.DistributionRecord{
		Members:       slices.Clone(req.Members),
		PolicyId:      policyId,
		UserAssetName: userName,
		Remaining:     members,
	}
	proposalCbor, err := datum.Encode(proposal)
	if err != nil {
		return nil, err
	}
	distributionCbor, err := datum.Encode(distribution)
	if err != nil {
		return nil, err
	}
	redeemer, err := datum.Encode(datum.MintActionMint)
	if err != nil {
		return nil, err
	}
	message := req.Message
	if message == "" {
		message = "Proposal: " + title
	}
	d := &Draft{
		Kind:   event.TxKindIssue,
		Inputs: []Input{{Utxo: param}},
		Mints: []Mint{
			{
				PolicyId: policyId,
				Script:   script,
				Redeemer: redeemer,
				Assets: []MintAsset{
					{Name: refName, Quantity: 1},
					{Name: userName, Quantity: int64(members)}, // #nosec G115
				},
			},
		},
		Outputs: []Output{
			{
				Address: b.contracts.Metadata.Address,
				Assets: []utxo.Asset{
					{PolicyId: policyId, Name: refName, Quantity: 1},
				},
				Datum: proposalCbor,
			},
			{
				Address: b.contracts.Distribution.Address,
				Assets: []utxo.Asset{
					{PolicyId: policyId, Name: userName, Quantity: members},
				},
				Datum: distributionCbor,
			},
		},
		Metadata: Metadata{
			Display: &DisplayMetadata{
				PolicyId: policyId,
				Assets: []DisplayAsset{
					{
						Name:        refName,
						DisplayName: title,
						Description: req.Description,
						Image:       req.Image,
					},
					{
						Name:        userName,
						DisplayName: datum.TruncateText("Vote: "+title, datum.MaxTextBytes),
						Description: req.Description,
						Image:       req.Image,
					},
				},
			},
			Message: NewMessage(message),
		},
		Funding:       utxos,
		ChangeAddress: changeAddr,
		ValidTo:       b.validTo(),
		PolicyId:      policyId,
		BaseAssetName: base,
		ParamRef:      &param.Ref,
	}
	if err := b.VerifyIssue(d); err != nil {
		return nil, err
	}
	return b.assemble(ctx, d)
}

// VerifyIssue checks that the minted policy, the policy in both records and
// the policy derived again from the consumed parameter are identical
func (b *Builder) VerifyIssue(d *Draft) error {
	if d.ParamRef == nil || len(d.Mints) != 1 {
		return invalidRequest("issue needs a parameter and exactly one mint")
	}
	minted := d.Mints[0].PolicyId
	if err := contract.CheckIdentity(
		"minting script",
		minted,
		d.Mints[0].Script.Hash(),
	); err != nil {
		return err
	}
	var proposals, distributions int
	for _, o := range d.Outputs {
		switch o.Address {
		case b.contracts.Metadata.Address:
			rec, err := datum.DecodeProposal(o.Datum)
			if err != nil {
				return err
			}
			if err := contract.CheckIdentity(
				"proposal record",
				rec.PolicyId,
				minted,
			); err != nil {
				return err
			}
			proposals++
		case b.contracts.Distribution.Address:
			rec, err := datum.DecodeDistribution(o.Datum)
			if err != nil {
				return err
			}
			if err := contract.CheckIdentity(
				"distribution record",
				rec.PolicyId,
				minted,
			); err != nil {
				return err
			}
			distributions++
		}
	}
	if proposals != 1 || distributions != 1 {
		return invalidRequest(
			"issue pays %d proposal and %d distribution outputs",
			proposals,
			distributions,
		)
	}
	if !slices.Contains(d.inputRefs(), *d.ParamRef) {
		return invalidRequest(
			"parameter %s is not spent",
			d.ParamRef.String(),
		)
	}
	derived, err := b.policies.PolicyFor(*d.ParamRef)
	if err != nil {
		return err
	}
	return contract.CheckIdentity(
		"parameter "+d.ParamRef.String(),
		minted,
		derived,
	)
}

// Claim moves one user token from the distribution contract to the wallet
func (b *Builder) Claim(ctx context.Context, req ClaimRequest) (*Assembled, error) {
	changeAddr, utxos, err := b.walletState(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := contract.PaymentCredential(changeAddr)
	if err != nil {
		return nil, err
	}
	userName := contract.UserName(req.BaseAssetName)
	distAddr := b.contracts.Distribution.Address
	distUtxos, err := b.utxosAt(ctx, distAddr)
	if err != nil {
		return nil, err
	}
	source, rec, err := b.findDistribution(distUtxos, req.PolicyId, userName)
	if err != nil {
		return nil, err
	}
	if !rec.IsMember(cred) {
		return nil, ErrNotAMember
	}
	next, err := rec.AfterClaim()
	if err != nil {
		return nil, err
	}
	held := source.Quantity(req.PolicyId, userName)
	if held != rec.Remaining {
		return nil, fmt.Errorf(
			"%w: distribution output holds %d tokens, record has %d remaining",
			ErrTokenConservation,
			held,
			rec.Remaining,
		)
	}
	redeemer, err := datum.Encode(datum.DistributionActionClaim)
	if err != nil {
		return nil, err
	}
	in := Input{Utxo: source, Redeemer: redeemer}
	switch v := b.contracts.Distribution; {
	case v.Template != nil:
		in.Script = v.Template
	case v.ScriptRef != nil:
		in.ScriptRef = v.ScriptRef
	default:
		return nil, errors.New("distribution contract has no script or script reference")
	}
	outputs := []Output{
		{
			Address: changeAddr,
			Assets: []utxo.Asset{
				{PolicyId: req.PolicyId, Name: userName, Quantity: 1},
			},
		},
	}
	if next.Remaining > 0 {
		nextCbor, err := datum.Encode(next)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{
			Address:  distAddr,
			Lovelace: source.Lovelace,
			Assets: []utxo.Asset{
				{PolicyId: req.PolicyId, Name: userName, Quantity: held - 1},
			},
			Datum: nextCbor,
		})
	}
	message := req.Message
	if message == "" {
		message = "Claim voting token"
	}
	d := &Draft{
		Kind:          event.TxKindClaim,
		Inputs:        []Input{in},
		Outputs:       outputs,
		Metadata:      Metadata{Message: NewMessage(message)},
		Funding:       utxos,
		ChangeAddress: changeAddr,
		ValidTo:       b.validTo(),
		PolicyId:      req.PolicyId,
		BaseAssetName: slices.Clone(req.BaseAssetName),
	}
	if cred.Kind == datum.CredentialKeyHash {
		d.RequiredSigners = []lcommon.Blake2b224{cred.Hash}
	}
	if err := CheckConservation(d, req.PolicyId, userName); err != nil {
		return nil, err
	}
	return b.assemble(ctx, d)
}

// findDistribution returns the distribution output for the proposal. Outputs
// whose record does not decode or belongs to another policy are skipped.
func (b *Builder) findDistribution(
	utxos []utxo.Utxo,
	policyId lcommon.Blake2b224,
	userName []byte,
) (utxo.Utxo, datum.DistributionRecord, error) {
	var lastErr error
	for _, u := range utxo.HoldingAsset(utxos, policyId, userName) {
		rec, err := datum.DecodeDistribution(u.Datum)
		if err == nil {
			err = contract.CheckIdentity(
				"distribution record at "+u.Ref.String(),
				policyId,
				rec.PolicyId,
			)
		}
		if err == nil && !bytes.Equal(rec.UserAssetName, userName) {
			err = fmt.Errorf(
				"%w: distribution record at %s names asset %x",
				datum.ErrSchemaMismatch,
				u.Ref.String(),
				rec.UserAssetName,
			)
		}
		if err != nil {
			b.logger.Warn(
				"skipping distribution output",
				"ref", u.Ref.String(),
				"error", err,
			)
			lastErr = err
			continue
		}
		return u, rec, nil
	}
	if lastErr != nil {
		return utxo.Utxo{}, datum.DistributionRecord{}, fmt.Errorf(
			"%w: %w",
			ErrNoDistribution,
			lastErr,
		)
	}
	return utxo.Utxo{}, datum.DistributionRecord{}, ErrNoDistribution
}

// CheckConservation verifies that the draft's outputs carry exactly as many
// user tokens as its inputs
func CheckConservation(
	d *Draft,
	policyId lcommon.Blake2b224,
	userName []byte,
) error {
	var before, after uint64
	for _, in := range d.Inputs {
		before += in.Utxo.Quantity(policyId, userName)
	}
	for _, o := range d.Outputs {
		for _, a := range o.Assets {
			if a.PolicyId == policyId && bytes.Equal(a.Name, userName) {
				after += a.Quantity
			}
		}
	}
	if before != after {
		return &ConservationError{Before: before, After: after}
	}
	return nil
}

// Vote moves one user token from the wallet to the voting contract with the
// chosen vote attached
func (b *Builder) Vote(ctx context.Context, req VoteRequest) (*Assembled, error) {
	if req.Choice != datum.VoteYes && req.Choice != datum.VoteNo {
		return nil, invalidRequest("unknown vote %d", req.Choice)
	}
	changeAddr, utxos, err := b.walletState(ctx)
	if err != nil {
		return nil, err
	}
	userName := contract.UserName(req.BaseAssetName)
	holding := utxo.HoldingAsset(utxos, req.PolicyId, userName)
	if len(holding) == 0 {
		return nil, ErrNoVotingToken
	}
	token := holding[0]
	voteCbor, err := datum.Encode(req.Choice)
	if err != nil {
		return nil, err
	}
	message := req.Message
	if message == "" {
		message = "Vote: " + req.Choice.String()
	}
	d := &Draft{
		Kind:   event.TxKindVote,
		Inputs: []Input{{Utxo: token}},
		Outputs: []Output{
			{
				Address: b.contracts.Voting.Address,
				Assets: []utxo.Asset{
					{PolicyId: req.PolicyId, Name: userName, Quantity: 1},
				},
				Datum: voteCbor,
			},
		},
		Metadata:      Metadata{Message: NewMessage(message)},
		Funding:       utxos,
		ChangeAddress: changeAddr,
		ValidTo:       b.validTo(),
		PolicyId:      req.PolicyId,
		BaseAssetName: slices.Clone(req.BaseAssetName),
	}
	return b.assemble(ctx, d)
}

// Submit signs and submits an assembled transaction. Once the submitter has
// accepted it the transaction is final.
func (b *Builder) Submit(ctx context.Context, a *Assembled) (string, error) {
	if !a.Signable() {
		return "", ErrNotSignable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := a.Draft
	signed, err := b.wallet.SignTx(ctx, a.TxCbor)
	if err != nil {
		b.countFailure(d.Kind)
		return "", fmt.Errorf("sign %s transaction: %w", d.Kind, err)
	}
	txHash, err := b.wallet.SubmitTx(ctx, signed)
	if err != nil {
		b.countFailure(d.Kind)
		return "", fmt.Errorf("submit %s transaction: %w", d.Kind, err)
	}
	evt := event.TxSubmittedEvent{
		SubmittedAt:   b.now(),
		TxHash:        txHash,
		Kind:          d.Kind,
		PolicyId:      d.PolicyId.String(),
		BaseAssetName: fmt.Sprintf("%x", d.BaseAssetName),
	}
	if d.ParamRef != nil {
		evt.ParamRef = d.ParamRef.String()
		if b.params != nil {
			// the transaction is already on its way, so a store failure is
			// only logged
			if err := b.params.Put(d.PolicyId, *d.ParamRef); err != nil {
				b.logger.Error(
					"failed to persist policy parameter",
					"policy_id", d.PolicyId.String(),
					"ref", d.ParamRef.String(),
					"error", err,
				)
			}
		}
	}
	if b.metrics != nil {
		b.metrics.submitted.WithLabelValues(string(d.Kind)).Inc()
	}
	b.logger.Info(
		"submitted transaction",
		"kind", d.Kind,
		"tx_hash", txHash,
		"policy_id", d.PolicyId.String(),
	)
	if b.eventBus != nil {
		b.eventBus.Publish(
			event.TxSubmittedEventType,
			event.NewEvent(event.TxSubmittedEventType, evt),
		)
	}
	return txHash, nil
}

func (b *Builder) countFailure(kind event.TxKind) {
	if b.metrics != nil {
		b.metrics.submitFailed.WithLabelValues(string(kind)).Inc()
	}
}

func (b *Builder) assemble(ctx context.Context, d *Draft) (*Assembled, error) {
	pp, err := b.protocolParams(ctx)
	if err != nil {
		return nil, err
	}
	a, err := b.backend.Assemble(ctx, d, pp)
	if err != nil {
		return nil, fmt.Errorf("assemble %s transaction: %w", d.Kind, err)
	}
	if b.metrics != nil {
		b.metrics.assembled.WithLabelValues(string(d.Kind), a.Backend).Inc()
		b.metrics.lastFeeAmount.WithLabelValues(string(d.Kind)).Set(float64(a.Fee))
	}
	b.logger.Debug(
		"assembled transaction",
		"kind", d.Kind,
		"backend", a.Backend,
		"tx_hash", a.TxHash,
		"fee", a.Fee,
	)
	return a, nil
}

func (b *Builder) protocolParams(ctx context.Context) (indexer.ProtocolParams, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()
	pp, err := b.indexer.ProtocolParams(ctx)
	if err != nil {
		return indexer.ProtocolParams{}, indexer.Unavailable("protocol parameters", "", err)
	}
	return pp, nil
}

func (b *Builder) utxosAt(ctx context.Context, address string) ([]utxo.Utxo, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()
	ret, err := b.indexer.UtxosAt(ctx, address)
	if err != nil {
		return nil, indexer.Unavailable("utxos at", address, err)
	}
	return ret, nil
}

// walletState returns the wallet's first address, used for change, and its
// spendable outputs
func (b *Builder) walletState(ctx context.Context) (string, []utxo.Utxo, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()
	addrs, err := b.wallet.Addresses(ctx)
	if err != nil {
		return "", nil, indexer.Unavailable("wallet addresses", "", err)
	}
	if len(addrs) == 0 {
		return "", nil, ErrNoWalletAddress
	}
	utxos, err := b.wallet.Utxos(ctx)
	if err != nil {
		return "", nil, indexer.Unavailable("wallet utxos", addrs[0], err)
	}
	return addrs[0], utxos, nil
}

func (b *Builder) validTo() uint64 {
	if b.validity <= 0 || b.slotConfig.SlotLength <= 0 {
		return 0
	}
	return b.slotConfig.TimeToSlot(b.now().Add(b.validity))
}
