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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
network: preprod
dataDir: /var/lib/quorum
indexer:
  kind: utxorpc
  url: https://preprod.utxorpc-v0.demeter.run
  apiKey: secret
contracts:
  voting:
    scriptRef: "0000000000000000000000000000000000000000000000000000000000000000#1"
txBuilder:
  backend: plan
chainstate:
  legacyTrialSearch: true
  followHop: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := defaultConfig()
	expected.Network = "preprod"
	expected.DataDir = "/var/lib/quorum"
	expected.Indexer.Kind = IndexerUtxorpc
	expected.Indexer.Url = "https://preprod.utxorpc-v0.demeter.run"
	expected.Indexer.ApiKey = "secret"
	expected.Contracts.Voting.ScriptRef = "0000000000000000000000000000000000000000000000000000000000000000#1"
	expected.TxBuilder.Backend = "plan"
	expected.Chainstate.LegacyTrialSearch = true
	expected.Chainstate.FollowHop = true
	assert.Equal(t, expected, cfg)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfigSection(t *testing.T) {
	path := writeConfig(t, `
config:
  network: mainnet
  metricsPort: 9000
  txBuilder:
    backend: plan
  contracts:
    voting:
      scriptRef: "0000000000000000000000000000000000000000000000000000000000000000#2"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	expected := defaultConfig()
	expected.Network = "mainnet"
	expected.MetricsPort = 9000
	expected.TxBuilder.Backend = "plan"
	expected.Contracts.Voting.ScriptRef = "0000000000000000000000000000000000000000000000000000000000000000#2"
	assert.Equal(t, expected, cfg)
	assert.Equal(t, IndexerBlockfrost, cfg.Indexer.Kind)
	assert.Equal(t, "voting", cfg.Contracts.Voting.Title)
	assert.NotZero(t, cfg.TxBuilder.ExUnitsMem)
}

func TestLoadConfigSectionInvalid(t *testing.T) {
	path := writeConfig(t, `
config:
  metricsPort: [1, 2]
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("QUORUM_NETWORK", "preprod")
	t.Setenv("QUORUM_INDEXER_PROJECT_ID", "preprodabc")
	t.Setenv("QUORUM_TX_BUILDER_EX_UNITS_MEM", "42")
	t.Setenv("QUORUM_CHAINSTATE_MAX_CANDIDATES", "16")
	path := writeConfig(t, "network: mainnet\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "preprod", cfg.Network)
	assert.Equal(t, "preprodabc", cfg.Indexer.ProjectId)
	assert.Equal(t, uint64(42), cfg.TxBuilder.ExUnitsMem)
	assert.Equal(t, 16, cfg.Chainstate.MaxCandidates)
}

func TestLoadConfigInvalid(t *testing.T) {
	testDefs := []struct {
		name    string
		content string
	}{
		{name: "network", content: "network: nowhere\n"},
		{name: "indexer kind", content: "indexer:\n  kind: ogmios\n"},
		{name: "utxorpc without url", content: "indexer:\n  kind: utxorpc\n"},
		{name: "timeout", content: "queryTimeout: soon\n"},
		{
			name:    "trial bounds",
			content: "chainstate:\n  legacyTrialSearch: true\n  maxCandidates: 0\n",
		},
	}
	for _, tc := range testDefs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	assert.Same(t, cfg, FromContext(WithContext(context.Background(), cfg)))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, Duration(DefaultQueryTimeout))
	assert.Equal(t, 2*time.Hour, Duration(DefaultValidity))
}
