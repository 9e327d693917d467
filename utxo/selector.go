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

package utxo

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUtxos           = errors.New("no UTxOs available")
)

// InsufficientFundsError is returned when no usable input covers the required value.
// Available is the best value the selector could find.
type InsufficientFundsError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds: required %d lovelace, available %d",
		e.Required,
		e.Available,
	)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CoinSelection holds the result of coin selection
type CoinSelection struct {
	Inputs []Utxo
	Total  uint64
	Change uint64
}

// Selector chooses spendable outputs. It is safe for concurrent use.
type Selector struct {
	rng *rand.Rand
	mu  sync.Mutex
}

type SelectorOptionFunc func(*Selector)

// WithSeed makes tie-breaking reproducible
func WithSeed(seed uint64) SelectorOptionFunc {
	return func(s *Selector) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func NewSelector(opts ...SelectorOptionFunc) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		var seed [16]byte
		// crypto/rand.Read never returns an error on supported platforms
		_, _ = crand.Read(seed[:])
		s.rng = rand.New(
			rand.NewPCG(
				binary.LittleEndian.Uint64(seed[:8]),
				binary.LittleEndian.Uint64(seed[8:]),
			),
		)
	}
	return s
}

func (s *Selector) pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// SelectOne picks a single output worth at least minLovelace.
//
// With avoidSecondaryAssets set, outputs holding only lovelace are preferred and,
// failing that, the outputs with the fewest native assets. Remaining ties are
// broken pseudo-randomly so concurrent one-time parameter selections from the
// same wallet do not collide on the first input.
func (s *Selector) SelectOne(
	utxos []Utxo,
	minLovelace uint64,
	avoidSecondaryAssets bool,
) (Utxo, error) {
	var available uint64
	candidates := make([]Utxo, 0, len(utxos))
	for _, u := range utxos {
		available = max(available, u.Lovelace)
		if u.Lovelace >= minLovelace {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return Utxo{}, &InsufficientFundsError{
			Required:  minLovelace,
			Available: available,
		}
	}
	if avoidSecondaryAssets {
		fewest := candidates[0].AssetCount()
		for _, u := range candidates[1:] {
			fewest = min(fewest, u.AssetCount())
		}
		candidates = slices.DeleteFunc(candidates, func(u Utxo) bool {
			return u.AssetCount() != fewest
		})
	}
	return candidates[s.pick(len(candidates))], nil
}

// SelectCoins chooses outputs to fund target lovelace. It tries the smallest
// single covering output and largest-first accumulation, keeping whichever
// leaves less change. Lovelace-only outputs are tried before the full set.
// Outputs listed in exclude are never selected.
func (s *Selector) SelectCoins(
	utxos []Utxo,
	target uint64,
	exclude ...OutputRef,
) (*CoinSelection, error) {
	if target == 0 {
		return &CoinSelection{}, nil
	}
	usable := make([]Utxo, 0, len(utxos))
	for _, u := range utxos {
		if u.Lovelace == 0 || slices.Contains(exclude, u.Ref) {
			continue
		}
		usable = append(usable, u)
	}
	if len(usable) == 0 {
		return nil, ErrNoUtxos
	}
	pure := slices.DeleteFunc(
		slices.Clone(usable),
		func(u Utxo) bool { return u.HasSecondaryAssets() },
	)
	if ret := selectCoins(pure, target); ret != nil {
		return ret, nil
	}
	if ret := selectCoins(usable, target); ret != nil {
		return ret, nil
	}
	return nil, &InsufficientFundsError{
		Required:  target,
		Available: totalLovelace(usable),
	}
}

func selectCoins(candidates []Utxo, target uint64) *CoinSelection {
	if len(candidates) == 0 {
		return nil
	}
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Utxo) int {
		switch {
		case a.Lovelace < b.Lovelace:
			return -1
		case a.Lovelace > b.Lovelace:
			return 1
		}
		return 0
	})
	var single *CoinSelection
	for _, u := range sorted {
		if u.Lovelace >= target {
			single = &CoinSelection{
				Inputs: []Utxo{u},
				Total:  u.Lovelace,
				Change: u.Lovelace - target,
			}
			break
		}
	}
	var accum *CoinSelection
	var selected []Utxo
	var total uint64
	for i := len(sorted) - 1; i >= 0; i-- {
		selected = append(selected, sorted[i])
		total += sorted[i].Lovelace
		if total >= target {
			accum = &CoinSelection{
				Inputs: selected,
				Total:  total,
				Change: total - target,
			}
			break
		}
	}
	switch {
	case single != nil && accum != nil:
		if single.Change <= accum.Change {
			return single
		}
		return accum
	case single != nil:
		return single
	default:
		return accum
	}
}

// SelectCollateral returns the smallest lovelace-only output worth at least minLovelace
func (s *Selector) SelectCollateral(
	utxos []Utxo,
	minLovelace uint64,
) (Utxo, error) {
	var best *Utxo
	var available uint64
	for i := range utxos {
		u := &utxos[i]
		if u.HasSecondaryAssets() {
			continue
		}
		available = max(available, u.Lovelace)
		if u.Lovelace < minLovelace {
			continue
		}
		if best == nil || u.Lovelace < best.Lovelace {
			best = u
		}
	}
	if best == nil {
		return Utxo{}, &InsufficientFundsError{
			Required:  minLovelace,
			Available: available,
		}
	}
	return *best, nil
}

func totalLovelace(utxos []Utxo) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Lovelace
	}
	return total
}
