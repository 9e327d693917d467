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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/quorum/contract"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "quorum.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultQueryTimeout    = "10s"
	DefaultValidity        = "2h"

	IndexerBlockfrost = "blockfrost"
	IndexerUtxorpc    = "utxorpc"
)

var ErrInvalidConfig = errors.New("invalid config")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// tempConfig finds an optional top-level "config" section. Keeping it as a
// node lets only the keys present in the file override the defaults.
type tempConfig struct {
	Config yaml.Node `yaml:"config,omitempty"`
}

// IndexerConfig selects the chain indexer used for reads and submission
type IndexerConfig struct {
	Kind      string `yaml:"kind"`
	Url       string `yaml:"url"`
	ProjectId string `yaml:"projectId" split_words:"true"`
	// ApiKeyHeader is sent with the ApiKey on every UTxO RPC call
	ApiKeyHeader string `yaml:"apiKeyHeader" split_words:"true"`
	ApiKey       string `yaml:"apiKey"       split_words:"true"`
	MaxPages     int    `yaml:"maxPages"     split_words:"true"`
}

type ValidatorConfig struct {
	Title     string `yaml:"title"`
	Address   string `yaml:"address"`
	ScriptRef string `yaml:"scriptRef" split_words:"true"`
}

type ContractsConfig struct {
	Blueprint    string          `yaml:"blueprint"`
	MintTitle    string          `yaml:"mintTitle"    split_words:"true"`
	Metadata     ValidatorConfig `yaml:"metadata"`
	Distribution ValidatorConfig `yaml:"distribution"`
	Voting       ValidatorConfig `yaml:"voting"`
}

type TxBuilderConfig struct {
	Backend            string `yaml:"backend"`
	Validity           string `yaml:"validity"`
	ParamLovelace      uint64 `yaml:"paramLovelace"      split_words:"true"`
	CollateralLovelace uint64 `yaml:"collateralLovelace" split_words:"true"`
	ExUnitsMem         uint64 `yaml:"exUnitsMem"         split_words:"true"`
	ExUnitsSteps       uint64 `yaml:"exUnitsSteps"       split_words:"true"`
	SelectorSeed       uint64 `yaml:"selectorSeed"       split_words:"true"`
}

type ChainstateConfig struct {
	LegacyTrialSearch bool   `yaml:"legacyTrialSearch" split_words:"true"`
	FollowHop         bool   `yaml:"followHop"         split_words:"true"`
	MaxOutputIndex    uint32 `yaml:"maxOutputIndex"    split_words:"true"`
	MaxCandidates     int    `yaml:"maxCandidates"     split_words:"true"`
	IssueTimes        bool   `yaml:"issueTimes"        split_words:"true"`
}

type Config struct {
	Indexer         IndexerConfig    `yaml:"indexer"`
	Contracts       ContractsConfig  `yaml:"contracts"`
	TxBuilder       TxBuilderConfig  `yaml:"txBuilder"       split_words:"true"`
	Chainstate      ChainstateConfig `yaml:"chainstate"`
	Network         string           `yaml:"network"`
	DataDir         string           `yaml:"dataDir"         split_words:"true"`
	SigningKeyFile  string           `yaml:"signingKeyFile"  split_words:"true"`
	ApiListenAddr   string           `yaml:"apiListenAddr"   split_words:"true"`
	QueryTimeout    string           `yaml:"queryTimeout"    split_words:"true"`
	ShutdownTimeout string           `yaml:"shutdownTimeout" split_words:"true"`
	MetricsPort     uint             `yaml:"metricsPort"     split_words:"true"`
	Journal         bool             `yaml:"journal"`
	Tracing         bool             `yaml:"tracing"`
	TracingStdout   bool             `yaml:"tracingStdout"   split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		Network: "preview",
		DataDir: ".quorum",
		Indexer: IndexerConfig{
			Kind:         IndexerBlockfrost,
			ApiKeyHeader: "dmtr-api-key",
		},
		Contracts: ContractsConfig{
			Blueprint: "plutus.json",
			MintTitle: "governance_token",
			Metadata: ValidatorConfig{
				Title: "proposal_metadata",
			},
			Distribution: ValidatorConfig{
				Title: "token_distribution",
			},
			Voting: ValidatorConfig{
				Title: "voting",
			},
		},
		TxBuilder: TxBuilderConfig{
			Backend:            "cbor",
			Validity:           DefaultValidity,
			ParamLovelace:      2_000_000,
			CollateralLovelace: 5_000_000,
			ExUnitsMem:         3_500_000,
			ExUnitsSteps:       1_500_000_000,
		},
		Chainstate: ChainstateConfig{
			MaxOutputIndex: 8,
			MaxCandidates:  256,
			IssueTimes:     true,
		},
		ApiListenAddr:   ":8080",
		QueryTimeout:    DefaultQueryTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsPort:     12799,
		Journal:         true,
	}
}

var globalConfig = defaultConfig()

// LoadConfig reads configFile, or the first of ~/.quorum/quorum.yaml and
// /etc/quorum/quorum.yaml that exists, then applies QUORUM_* environment
// variables on top
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".quorum", "quorum.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/quorum/quorum.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if !tempCfg.Config.IsZero() {
			if err := tempCfg.Config.Decode(cfg); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(buf, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}
	if err := envconfig.Process("quorum", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if _, err := contract.NetworkByName(c.Network); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Indexer.Kind {
	case IndexerBlockfrost:
	case IndexerUtxorpc:
		if c.Indexer.Url == "" {
			return fmt.Errorf(
				"%w: indexer url is required for %s",
				ErrInvalidConfig,
				IndexerUtxorpc,
			)
		}
	default:
		return fmt.Errorf(
			"%w: unknown indexer kind %q (must be '%s' or '%s')",
			ErrInvalidConfig,
			c.Indexer.Kind,
			IndexerBlockfrost,
			IndexerUtxorpc,
		)
	}
	for name, value := range map[string]string{
		"queryTimeout":       c.QueryTimeout,
		"shutdownTimeout":    c.ShutdownTimeout,
		"txBuilder.validity": c.TxBuilder.Validity,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
	}
	if c.Chainstate.LegacyTrialSearch {
		if c.Chainstate.MaxOutputIndex == 0 || c.Chainstate.MaxCandidates < 1 {
			return fmt.Errorf(
				"%w: trial search bounds must be positive",
				ErrInvalidConfig,
			)
		}
	}
	return nil
}

// Duration parses a duration field already checked by Validate
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// ContractsConfig resolves the contract section against a loaded blueprint
func (c *Config) ContractsConfig(
	blueprint *contract.Blueprint,
) contract.ContractsConfig {
	convert := func(v ValidatorConfig) contract.ValidatorConfig {
		return contract.ValidatorConfig{
			Title:     v.Title,
			Address:   v.Address,
			ScriptRef: v.ScriptRef,
		}
	}
	return contract.ContractsConfig{
		Blueprint:    blueprint,
		Network:      c.Network,
		MintTitle:    c.Contracts.MintTitle,
		Metadata:     convert(c.Contracts.Metadata),
		Distribution: convert(c.Contracts.Distribution),
		Voting:       convert(c.Contracts.Voting),
	}
}
