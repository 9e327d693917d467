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

package chainstate

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/paramstore"
	"github.com/blinklabs-io/quorum/utxo"
)

const (
	DefaultMaxOutputIndex = 8
	DefaultMaxCandidates  = 256
)

// TrialSearchConfig bounds the search for parameters that were never
// persisted. Candidates are the inputs of the issuing transaction, every
// output index below MaxOutputIndex of their transactions and, with
// FollowHop, the same again for the inputs of those transactions.
type TrialSearchConfig struct {
	MaxOutputIndex uint32
	MaxCandidates  int
	FollowHop      bool
}

func (c *TrialSearchConfig) setDefaults() {
	if c.MaxOutputIndex == 0 {
		c.MaxOutputIndex = DefaultMaxOutputIndex
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
}

// RecoverParameter returns the output reference policyId was derived from.
// The parameter store is consulted first. Without a stored entry the bounded
// trial search runs when enabled, and its result is written back.
func (r *Reconstructor) RecoverParameter(
	ctx context.Context,
	policyId lcommon.Blake2b224,
) (utxo.OutputRef, error) {
	if r.params != nil {
		ref, err := r.params.Get(policyId)
		switch {
		case err == nil:
			if err := r.verifyParameter(policyId, ref); err != nil {
				return utxo.OutputRef{}, err
			}
			r.countRecovered("store")
			return ref, nil
		case !errors.Is(err, paramstore.ErrNotFound):
			return utxo.OutputRef{}, fmt.Errorf("lookup parameter: %w", err)
		}
	}
	if r.trialSearch == nil {
		return utxo.OutputRef{}, &ParameterNotRecoverableError{
			PolicyId: policyId,
			Reason:   "no stored parameter and trial search is disabled",
		}
	}
	issueTx, err := r.issueTx(ctx, policyId)
	if err != nil {
		return utxo.OutputRef{}, err
	}
	ref, err := r.searchParameter(ctx, policyId, issueTx)
	if err != nil {
		return utxo.OutputRef{}, err
	}
	r.countRecovered("trial")
	if r.params != nil {
		if err := r.params.Put(policyId, ref); err != nil {
			r.logger.Error(
				"failed to persist recovered parameter",
				"policy_id", policyId.String(),
				"ref", ref.String(),
				"error", err,
			)
		}
	}
	return ref, nil
}

func (r *Reconstructor) verifyParameter(
	policyId lcommon.Blake2b224,
	ref utxo.OutputRef,
) error {
	derived, err := r.policies.PolicyFor(ref)
	if err != nil {
		return err
	}
	return contract.CheckIdentity("stored parameter "+ref.String(), policyId, derived)
}

// issueTx finds the transaction that last moved the proposal's reference
// token, which is the issuing transaction while the token stays at the
// metadata contract
func (r *Reconstructor) issueTx(
	ctx context.Context,
	policyId lcommon.Blake2b224,
) (lcommon.Blake2b256, error) {
	utxos, err := r.utxosAt(ctx, r.contracts.Metadata.Address)
	if err != nil {
		return lcommon.Blake2b256{}, err
	}
	for _, u := range utxos {
		for _, a := range u.Assets {
			if a.PolicyId == policyId &&
				bytes.HasPrefix(a.Name, contract.ReferenceLabel) {
				return u.Ref.TxId, nil
			}
		}
	}
	return lcommon.Blake2b256{}, &ParameterNotRecoverableError{
		PolicyId: policyId,
		Reason:   "no reference token at the metadata contract",
	}
}

// searchParameter tries candidate references in order until one derives
// policyId
func (r *Reconstructor) searchParameter(
	ctx context.Context,
	policyId lcommon.Blake2b224,
	issueTx lcommon.Blake2b256,
) (utxo.OutputRef, error) {
	cfg := r.trialSearch
	seen := make(map[utxo.OutputRef]struct{})
	tried := 0
	notFound := func(reason string) error {
		return &ParameterNotRecoverableError{
			PolicyId: policyId,
			Tried:    tried,
			Reason:   reason,
		}
	}
	// try reports whether ref derives policyId, skipping repeats
	try := func(ref utxo.OutputRef) (bool, error) {
		if _, ok := seen[ref]; ok {
			return false, nil
		}
		seen[ref] = struct{}{}
		tried++
		derived, err := r.policies.PolicyFor(ref)
		if err != nil {
			return false, err
		}
		return derived == policyId, nil
	}
	level := []lcommon.Blake2b256{issueTx}
	for depth := 0; depth < 2 && len(level) > 0; depth++ {
		if depth == 1 && !cfg.FollowHop {
			break
		}
		var inputs []utxo.OutputRef
		for _, txHash := range level {
			refs, err := r.txInputs(ctx, txHash)
			if err != nil {
				if errors.Is(err, indexer.ErrNotFound) {
					continue
				}
				return utxo.OutputRef{}, err
			}
			inputs = append(inputs, refs...)
		}
		// spent references first, then their sibling outputs
		candidates := append([]utxo.OutputRef{}, inputs...)
		for _, in := range inputs {
			for idx := range cfg.MaxOutputIndex {
				candidates = append(
					candidates,
					utxo.OutputRef{TxId: in.TxId, Index: idx},
				)
			}
		}
		for _, ref := range candidates {
			if tried >= cfg.MaxCandidates {
				return utxo.OutputRef{}, notFound("candidate limit reached")
			}
			ok, err := try(ref)
			if err != nil {
				return utxo.OutputRef{}, err
			}
			if ok {
				r.logger.Info(
					"recovered policy parameter",
					"policy_id", policyId.String(),
					"ref", ref.String(),
					"candidates", tried,
				)
				return ref, nil
			}
		}
		level = level[:0]
		hops := make(map[lcommon.Blake2b256]struct{})
		for _, in := range inputs {
			if _, ok := hops[in.TxId]; ok {
				continue
			}
			hops[in.TxId] = struct{}{}
			level = append(level, in.TxId)
		}
	}
	return utxo.OutputRef{}, notFound("candidates exhausted")
}

func (r *Reconstructor) countRecovered(source string) {
	if r.metrics != nil {
		r.metrics.recovered.WithLabelValues(source).Inc()
	}
}
