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

// Package chainstate reads proposals, votes and policy parameters back from
// ledger state held at the protocol's contract addresses.
package chainstate

import (
	"bytes"
	"cmp"
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
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultQueryTimeout = 10 * time.Second

const (
	recordProposal = "ProposalRecord"
	recordVote     = "VoteRecord"
)

// PolicyDeriver derives the one-time policy ID for an output reference
type PolicyDeriver interface {
	PolicyFor(ref utxo.OutputRef) (lcommon.Blake2b224, error)
}

// ParamStore persists the parameter each policy was derived from
type ParamStore interface {
	Get(policyId lcommon.Blake2b224) (utxo.OutputRef, error)
	Put(policyId lcommon.Blake2b224, ref utxo.OutputRef) error
}

// Reconstructor derives proposals, tallies and policy parameters from
// indexer queries. Each call works on its own snapshot of ledger state.
type Reconstructor struct {
	logger       *slog.Logger
	contracts    *contract.Contracts
	indexer      indexer.Indexer
	policies     PolicyDeriver
	params       ParamStore
	eventBus     *event.EventBus
	promRegistry prometheus.Registerer
	metrics      *reconstructorMetrics
	now          func() time.Time
	trialSearch  *TrialSearchConfig
	queryTimeout time.Duration
	issueTimes   bool
}

type ReconstructorOptionFunc func(*Reconstructor)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.logger = logger
	}
}

// WithEventBus specifies the event bus for skip and tally events
func WithEventBus(eventBus *event.EventBus) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.eventBus = eventBus
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.promRegistry = registry
	}
}

// WithQueryTimeout bounds every indexer query
func WithQueryTimeout(timeout time.Duration) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.queryTimeout = timeout
	}
}

// WithParamStore enables direct parameter lookups
func WithParamStore(params ParamStore) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.params = params
	}
}

// WithPolicyDeriver overrides the contracts as the policy deriver
func WithPolicyDeriver(policies PolicyDeriver) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.policies = policies
	}
}

// WithTrialSearch enables the bounded search for parameters that were never
// persisted
func WithTrialSearch(cfg TrialSearchConfig) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.trialSearch = &cfg
	}
}

// WithIssueTimes resolves the confirmation time of each listed proposal
func WithIssueTimes(enabled bool) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.issueTimes = enabled
	}
}

// WithClock replaces the wall clock used for proposal status
func WithClock(now func() time.Time) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.now = now
	}
}

func NewReconstructor(
	contracts *contract.Contracts,
	idx indexer.Indexer,
	opts ...ReconstructorOptionFunc,
) (*Reconstructor, error) {
	if contracts == nil {
		return nil, errors.New("no contracts configured")
	}
	if idx == nil {
		return nil, errors.New("no indexer configured")
	}
	r := &Reconstructor{
		contracts:    contracts,
		indexer:      idx,
		policies:     contracts,
		queryTimeout: DefaultQueryTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "chainstate")
	if r.trialSearch != nil {
		r.trialSearch.setDefaults()
	}
	if r.promRegistry != nil {
		r.initMetrics(r.promRegistry)
	}
	return r, nil
}

// ProposalSummary is a decoded proposal with its current vote count
type ProposalSummary struct {
	// IssuedAt is zero unless issue times are resolved
	IssuedAt time.Time
	Deadline time.Time
	Status   Status
	Record   datum.ProposalRecord
	Ref      utxo.OutputRef
	Yes      uint64
	No       uint64
}

func (p ProposalSummary) Votes() uint64 {
	return p.Yes + p.No
}

func (p ProposalSummary) UserAssetName() []byte {
	return contract.UserName(p.Record.BaseAssetName)
}

// ProposalList is the result of ListProposals. Warnings lists every output
// that was skipped, including votes that did not decode.
type ProposalList struct {
	Proposals []ProposalSummary
	Warnings  []Warning
}

// TallyResult counts the well-formed votes for one proposal
type TallyResult struct {
	UserAssetName []byte
	Skipped       []Warning
	Yes           uint64
	No            uint64
	PolicyId      lcommon.Blake2b224
}

func (t TallyResult) Votes() uint64 {
	return t.Yes + t.No
}

// ListProposals decodes every proposal held at the metadata contract and
// tallies its votes. Outputs that fail to decode are skipped and reported.
func (r *Reconstructor) ListProposals(ctx context.Context) (*ProposalList, error) {
	metaAddr := r.contracts.Metadata.Address
	metaUtxos, err := r.utxosAt(ctx, metaAddr)
	if err != nil {
		return nil, err
	}
	voteUtxos, err := r.utxosAt(ctx, r.contracts.Voting.Address)
	if err != nil {
		return nil, err
	}
	now := r.now()
	ret := &ProposalList{}
	for _, u := range metaUtxos {
		rec, err := datum.DecodeProposal(u.Datum)
		if err == nil {
			err = checkReference(u, rec)
		}
		if err != nil {
			ret.Warnings = append(
				ret.Warnings,
				r.skip(metaAddr, u.Ref, recordProposal, err),
			)
			continue
		}
		tally := r.countVotes(voteUtxos, rec.PolicyId, contract.UserName(rec.BaseAssetName))
		ret.Warnings = append(ret.Warnings, tally.Skipped...)
		summary := ProposalSummary{
			Ref:      u.Ref,
			Record:   rec,
			Deadline: time.UnixMilli(rec.Deadline),
			Yes:      tally.Yes,
			No:       tally.No,
		}
		summary.Status = ProposalStatus(
			now,
			summary.Deadline,
			summary.Votes(),
			rec.RequiredVotes,
		)
		if r.issueTimes {
			summary.IssuedAt, err = r.txTime(ctx, u.Ref.TxId)
			if err != nil && !errors.Is(err, indexer.ErrNotFound) {
				return nil, err
			}
		}
		r.publishTally(tally)
		ret.Proposals = append(ret.Proposals, summary)
	}
	slices.SortFunc(ret.Proposals, func(a, b ProposalSummary) int {
		if c := cmp.Compare(a.Record.Deadline, b.Record.Deadline); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref.String(), b.Ref.String())
	})
	if r.metrics != nil {
		r.metrics.proposals.Set(float64(len(ret.Proposals)))
	}
	r.logger.Debug(
		"listed proposals",
		"proposals", len(ret.Proposals),
		"skipped", len(ret.Warnings),
	)
	return ret, nil
}

// Proposal returns the listed proposal for policyId
func (r *Reconstructor) Proposal(
	ctx context.Context,
	policyId lcommon.Blake2b224,
) (*ProposalSummary, error) {
	list, err := r.ListProposals(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list.Proposals {
		if list.Proposals[i].Record.PolicyId == policyId {
			return &list.Proposals[i], nil
		}
	}
	return nil, fmt.Errorf("proposal %s: %w", policyId.String(), indexer.ErrNotFound)
}

// Tally counts the votes held at the voting contract for one user token
func (r *Reconstructor) Tally(
	ctx context.Context,
	policyId lcommon.Blake2b224,
	userAssetName []byte,
) (*TallyResult, error) {
	voteUtxos, err := r.utxosAt(ctx, r.contracts.Voting.Address)
	if err != nil {
		return nil, err
	}
	tally := r.countVotes(voteUtxos, policyId, userAssetName)
	r.publishTally(tally)
	return &tally, nil
}

func (r *Reconstructor) countVotes(
	utxos []utxo.Utxo,
	policyId lcommon.Blake2b224,
	userAssetName []byte,
) TallyResult {
	ret := TallyResult{
		PolicyId:      policyId,
		UserAssetName: slices.Clone(userAssetName),
	}
	for _, u := range utxo.HoldingAsset(utxos, policyId, userAssetName) {
		vote, err := datum.DecodeVote(u.Datum)
		if err != nil {
			ret.Skipped = append(
				ret.Skipped,
				r.skip(r.contracts.Voting.Address, u.Ref, recordVote, err),
			)
			continue
		}
		switch vote {
		case datum.VoteYes:
			ret.Yes++
		case datum.VoteNo:
			ret.No++
		}
	}
	return ret
}

// checkReference verifies that u holds the reference token the record names
func checkReference(u utxo.Utxo, rec datum.ProposalRecord) error {
	refName := contract.ReferenceName(rec.BaseAssetName)
	if u.Quantity(rec.PolicyId, refName) == 1 {
		return nil
	}
	for _, a := range u.Assets {
		if bytes.Equal(a.Name, refName) && a.PolicyId != rec.PolicyId {
			return contract.CheckIdentity(
				"reference token at "+u.Ref.String(),
				rec.PolicyId,
				a.PolicyId,
			)
		}
	}
	return fmt.Errorf(
		"%w: %s does not hold one %s",
		ErrReferenceToken,
		u.Ref.String(),
		contract.Unit(rec.PolicyId, refName),
	)
}

func (r *Reconstructor) skip(
	address string,
	ref utxo.OutputRef,
	record string,
	err error,
) Warning {
	r.logger.Warn(
		"skipping output",
		"address", address,
		"ref", ref.String(),
		"record", record,
		"error", err,
	)
	if r.metrics != nil {
		r.metrics.decodeSkipped.WithLabelValues(record).Inc()
	}
	if r.eventBus != nil {
		r.eventBus.Publish(
			event.DecodeSkippedEventType,
			event.NewEvent(
				event.DecodeSkippedEventType,
				event.DecodeSkippedEvent{
					Address: address,
					OutRef:  ref.String(),
					Record:  record,
					Reason:  err.Error(),
				},
			),
		)
	}
	return Warning{
		Address: address,
		Ref:     ref,
		Record:  record,
		Err:     err,
	}
}

func (r *Reconstructor) publishTally(t TallyResult) {
	if r.metrics != nil {
		r.metrics.tallies.Inc()
	}
	if r.eventBus == nil {
		return
	}
	base, _ := contract.BaseName(t.UserAssetName)
	r.eventBus.Publish(
		event.TallyEventType,
		event.NewEvent(
			event.TallyEventType,
			event.TallyEvent{
				ObservedAt:    r.now(),
				PolicyId:      t.PolicyId.String(),
				BaseAssetName: fmt.Sprintf("%x", base),
				Yes:           t.Yes,
				No:            t.No,
				Skipped:       uint64(len(t.Skipped)),
			},
		),
	)
}

func (r *Reconstructor) utxosAt(ctx context.Context, address string) ([]utxo.Utxo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	ret, err := r.indexer.UtxosAt(ctx, address)
	if err != nil {
		return nil, indexer.Unavailable("utxos at address", address, err)
	}
	return ret, nil
}

func (r *Reconstructor) txInputs(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) ([]utxo.OutputRef, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	ret, err := r.indexer.TxInputs(ctx, txHash)
	if err != nil {
		return nil, indexer.Unavailable("transaction inputs", txHash.String(), err)
	}
	return ret, nil
}

func (r *Reconstructor) txTime(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	ret, err := r.indexer.TxTime(ctx, txHash)
	if err != nil {
		return time.Time{}, indexer.Unavailable("transaction time", txHash.String(), err)
	}
	return ret, nil
}
