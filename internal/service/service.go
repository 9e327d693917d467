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

// Package service composes the quorum components from a loaded config
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/blinklabs-io/quorum/api"
	"github.com/blinklabs-io/quorum/chainstate"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/database"
	"github.com/blinklabs-io/quorum/event"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/indexer/blockfrost"
	"github.com/blinklabs-io/quorum/indexer/utxorpc"
	"github.com/blinklabs-io/quorum/internal/config"
	"github.com/blinklabs-io/quorum/paramstore"
	"github.com/blinklabs-io/quorum/txbuilder"
	"github.com/blinklabs-io/quorum/utxo"
	"github.com/blinklabs-io/quorum/wallet"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrNoSigningKey = errors.New("no signing key configured")

// ChainClient is an indexer that can also submit transactions
type ChainClient interface {
	indexer.Indexer
	wallet.Submitter
}

// Service holds the components shared by every command
type Service struct {
	config        *config.Config
	logger        *slog.Logger
	promRegistry  prometheus.Registerer
	eventBus      *event.EventBus
	chain         ChainClient
	contracts     *contract.Contracts
	params        *paramstore.Store
	journal       *database.Journal
	reconstructor *chainstate.Reconstructor
	slotConfig    indexer.SlotConfig
}

type ServiceOptionFunc func(*Service)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ServiceOptionFunc {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ServiceOptionFunc {
	return func(s *Service) {
		s.promRegistry = registry
	}
}

// WithChainClient replaces the indexer built from config
func WithChainClient(client ChainClient) ServiceOptionFunc {
	return func(s *Service) {
		s.chain = client
	}
}

// WithContracts replaces the contracts resolved from the blueprint
func WithContracts(contracts *contract.Contracts) ServiceOptionFunc {
	return func(s *Service) {
		s.contracts = contracts
	}
}

// New opens the stores and resolves the contracts described by cfg
func New(cfg *config.Config, opts ...ServiceOptionFunc) (*Service, error) {
	s := &Service{
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	slotConfig, err := indexer.SlotConfigForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	s.slotConfig = slotConfig
	if s.contracts == nil {
		blueprint, err := contract.LoadBlueprint(cfg.Contracts.Blueprint)
		if err != nil {
			return nil, err
		}
		s.contracts, err = contract.NewContracts(cfg.ContractsConfig(blueprint))
		if err != nil {
			return nil, err
		}
	}
	if s.chain == nil {
		s.chain, err = s.newChainClient()
		if err != nil {
			return nil, err
		}
	}
	s.eventBus = event.NewEventBus(s.promRegistry, s.logger)
	var dataDir string
	if cfg.DataDir != "" {
		dataDir = filepath.Join(cfg.DataDir, "params")
	}
	s.params, err = paramstore.New(
		paramstore.WithDataDir(dataDir),
		paramstore.WithLogger(s.logger),
	)
	if err != nil {
		s.eventBus.Stop()
		return nil, err
	}
	if cfg.Journal {
		s.journal, err = database.New(
			database.WithDataDir(cfg.DataDir),
			database.WithLogger(s.logger),
			database.WithPromRegistry(s.promRegistry),
			database.WithEventBus(s.eventBus),
		)
		if err != nil {
			_ = s.params.Close()
			s.eventBus.Stop()
			return nil, err
		}
	}
	s.reconstructor, err = chainstate.NewReconstructor(
		s.contracts,
		s.chain,
		s.reconstructorOptions()...,
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) newChainClient() (ChainClient, error) {
	cfg := s.config.Indexer
	switch cfg.Kind {
	case config.IndexerUtxorpc:
		opts := []utxorpc.ClientOption{
			utxorpc.WithLogger(s.logger),
			utxorpc.WithSlotConfig(s.slotConfig),
			utxorpc.WithMaxPages(cfg.MaxPages),
		}
		if cfg.ApiKey != "" {
			opts = append(opts, utxorpc.WithHeader(cfg.ApiKeyHeader, cfg.ApiKey))
		}
		return utxorpc.NewClient(cfg.Url, opts...), nil
	case config.IndexerBlockfrost, "":
		baseURL := cfg.Url
		if baseURL == "" {
			var err error
			baseURL, err = blockfrost.BaseURLForNetwork(s.config.Network)
			if err != nil {
				return nil, err
			}
		}
		return blockfrost.NewClient(
			baseURL,
			blockfrost.WithProjectId(cfg.ProjectId),
			blockfrost.WithLogger(s.logger),
			blockfrost.WithMaxPages(cfg.MaxPages),
		), nil
	}
	return nil, fmt.Errorf("unknown indexer kind: %s", cfg.Kind)
}

func (s *Service) reconstructorOptions() []chainstate.ReconstructorOptionFunc {
	opts := []chainstate.ReconstructorOptionFunc{
		chainstate.WithLogger(s.logger),
		chainstate.WithEventBus(s.eventBus),
		chainstate.WithPromRegistry(s.promRegistry),
		chainstate.WithQueryTimeout(config.Duration(s.config.QueryTimeout)),
		chainstate.WithParamStore(s.params),
		chainstate.WithPolicyDeriver(s.contracts),
		chainstate.WithIssueTimes(s.config.Chainstate.IssueTimes),
	}
	if s.config.Chainstate.LegacyTrialSearch {
		opts = append(opts, chainstate.WithTrialSearch(
			chainstate.TrialSearchConfig{
				MaxOutputIndex: s.config.Chainstate.MaxOutputIndex,
				MaxCandidates:  s.config.Chainstate.MaxCandidates,
				FollowHop:      s.config.Chainstate.FollowHop,
			},
		))
	}
	return opts
}

// Wallet loads the configured signing key
func (s *Service) Wallet() (*wallet.KeyWallet, error) {
	if s.config.SigningKeyFile == "" {
		return nil, ErrNoSigningKey
	}
	skey, err := wallet.LoadSigningKey(s.config.SigningKeyFile)
	if err != nil {
		return nil, err
	}
	return wallet.NewKeyWallet(
		skey,
		s.contracts.Network,
		s.chain,
		wallet.WithLogger(s.logger),
		wallet.WithSubmitter(s.chain),
	)
}

// Builder returns a transaction builder signing with w
func (s *Service) Builder(w wallet.Wallet) (*txbuilder.Builder, error) {
	cfg := s.config.TxBuilder
	selectorOpts := []utxo.SelectorOptionFunc{}
	if cfg.SelectorSeed != 0 {
		selectorOpts = append(selectorOpts, utxo.WithSeed(cfg.SelectorSeed))
	}
	selector := utxo.NewSelector(selectorOpts...)
	backend, err := txbuilder.NewBackend(
		cfg.Backend,
		txbuilder.WithSelector(selector),
		txbuilder.WithCollateralLovelace(cfg.CollateralLovelace),
		txbuilder.WithExUnits(txbuilder.ExUnits{
			Mem:   cfg.ExUnitsMem,
			Steps: cfg.ExUnitsSteps,
		}),
	)
	if err != nil {
		return nil, err
	}
	return txbuilder.NewBuilder(
		s.contracts,
		w,
		s.chain,
		txbuilder.WithLogger(s.logger),
		txbuilder.WithBackend(backend),
		txbuilder.WithUtxoSelector(selector),
		txbuilder.WithParamStore(s.params),
		txbuilder.WithEventBus(s.eventBus),
		txbuilder.WithPromRegistry(s.promRegistry),
		txbuilder.WithSlotConfig(s.slotConfig),
		txbuilder.WithQueryTimeout(config.Duration(s.config.QueryTimeout)),
		txbuilder.WithValidity(config.Duration(cfg.Validity)),
		txbuilder.WithParamLovelace(cfg.ParamLovelace),
	)
}

// API returns the read API server
func (s *Service) API() *api.Server {
	opts := []api.ServerOptionFunc{
		api.WithLogger(s.logger),
		api.WithPromRegistry(s.promRegistry),
	}
	if s.journal != nil {
		opts = append(opts, api.WithSubmissions(s.journal))
	}
	return api.New(
		api.Config{ListenAddress: s.config.ApiListenAddr},
		s.reconstructor,
		opts...,
	)
}

func (s *Service) Contracts() *contract.Contracts {
	return s.contracts
}

func (s *Service) Reconstructor() *chainstate.Reconstructor {
	return s.reconstructor
}

func (s *Service) Params() *paramstore.Store {
	return s.params
}

// Journal returns nil when the journal is disabled
func (s *Service) Journal() *database.Journal {
	return s.journal
}

func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

// Close releases the stores. Events still queued are dropped.
func (s *Service) Close() error {
	var errs []error
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if err := s.params.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close parameter store: %w", err))
	}
	s.eventBus.Stop()
	return errors.Join(errs...)
}
