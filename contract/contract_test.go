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

package contract

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

// identityCode is (program 1.0.0 (lam x x)) in flat, wrapped in a CBOR byte string
const identityCode = "46010000200101"

func testTemplate(t *testing.T) Template {
	t.Helper()
	code, err := hex.DecodeString(identityCode)
	require.NoError(t, err)
	return Template{Title: "quorum.mint", Version: PlutusV2, Code: code}
}

func testRef(t *testing.T, fill string, idx uint32) utxo.OutputRef {
	t.Helper()
	ref, err := utxo.NewOutputRef(strings.Repeat(fill, 32), idx)
	require.NoError(t, err)
	return ref
}

func TestTemplateHash(t *testing.T) {
	tmpl := testTemplate(t)
	h, err := blake2b.New(28, nil)
	require.NoError(t, err)
	h.Write([]byte{lcommon.ScriptRefTypePlutusV2})
	h.Write(tmpl.Code)
	assert.Equal(t, h.Sum(nil), tmpl.Hash().Bytes())

	v3 := tmpl
	v3.Version = PlutusV3
	assert.NotEqual(t, tmpl.Hash(), v3.Hash())
}

func TestDeriveIdentityDeterministic(t *testing.T) {
	tmpl := testTemplate(t)
	ref := testRef(t, "a1", 0)
	first, err := DeriveIdentity(tmpl, ref)
	require.NoError(t, err)
	second, err := DeriveIdentity(tmpl, ref)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEqual(t, tmpl.Hash(), first)
}

func TestDeriveIdentityDistinct(t *testing.T) {
	tmpl := testTemplate(t)
	seen := map[lcommon.Blake2b224]utxo.OutputRef{}
	for _, fill := range []string{"00", "01", "a1", "ff"} {
		for idx := range uint32(4) {
			ref := testRef(t, fill, idx)
			id, err := DeriveIdentity(tmpl, ref)
			require.NoError(t, err)
			prev, dup := seen[id]
			require.False(t, dup, "collision between %s and %s", prev, ref)
			seen[id] = ref
		}
	}
}

func TestApplyParamsGrowsProgram(t *testing.T) {
	tmpl := testTemplate(t)
	applied, err := ParameterizePolicy(tmpl, testRef(t, "b2", 1))
	require.NoError(t, err)
	assert.Greater(t, len(applied.Code), len(tmpl.Code))
	assert.Equal(t, tmpl.Version, applied.Version)
}

func TestApplyParamsInvalidCode(t *testing.T) {
	_, err := ApplyParams(Template{Title: "bad", Code: []byte{0x01}})
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestScriptAddress(t *testing.T) {
	hash := lcommon.NewBlake2b224(bytes.Repeat([]byte{0x5a}, 28))
	preview, err := NetworkByName("preview")
	require.NoError(t, err)
	addr, err := ScriptAddress(hash, preview)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr.String(), "addr_test1w"))

	mainnet, err := NetworkByName("mainnet")
	require.NoError(t, err)
	addr, err = ScriptAddress(hash, mainnet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr.String(), "addr1w"))

	cred, err := PaymentCredential(addr.String())
	require.NoError(t, err)
	assert.Equal(t, datum.ScriptCredential(hash), cred)

	_, err = NetworkByName("nonexistent")
	assert.Error(t, err)
}

func TestKeyAddressCredential(t *testing.T) {
	hash := lcommon.NewBlake2b224(bytes.Repeat([]byte{0x11}, 28))
	preprod, err := NetworkByName("preprod")
	require.NoError(t, err)
	addr, err := KeyAddress(hash, preprod)
	require.NoError(t, err)
	cred, err := PaymentCredential(addr.String())
	require.NoError(t, err)
	assert.Equal(t, datum.KeyCredential(hash), cred)
}

func TestAssetNames(t *testing.T) {
	base := []byte("prop12")
	ref := ReferenceName(base)
	user := UserName(base)
	assert.Equal(t, "000643b0"+hex.EncodeToString(base), hex.EncodeToString(ref))
	assert.Equal(t, "000de140"+hex.EncodeToString(base), hex.EncodeToString(user))

	got, ok := BaseName(user)
	require.True(t, ok)
	assert.Equal(t, base, got)
	_, ok = BaseName(base)
	assert.False(t, ok)

	policy := lcommon.NewBlake2b224(bytes.Repeat([]byte{0xcd}, 28))
	unit := Unit(policy, user)
	p, name, err := ParseUnit(unit)
	require.NoError(t, err)
	assert.Equal(t, policy, p)
	assert.Equal(t, user, name)

	_, _, err = ParseUnit("abcd")
	assert.Error(t, err)
}

func TestCheckIdentity(t *testing.T) {
	a := lcommon.NewBlake2b224(bytes.Repeat([]byte{1}, 28))
	b := lcommon.NewBlake2b224(bytes.Repeat([]byte{2}, 28))
	require.NoError(t, CheckIdentity("record", a, a))
	err := CheckIdentity("record", a, b)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
	assert.Contains(t, err.Error(), a.String())
	assert.Contains(t, err.Error(), b.String())
}

func testBlueprint(t *testing.T, hash string) []byte {
	t.Helper()
	return fmt.Appendf(nil, `{
  "preamble": {"title": "quorum/voting", "version": "0.1.0", "plutusVersion": "v2"},
  "validators": [
    {"title": "quorum.mint", "compiledCode": %q, "hash": %q},
    {"title": "metadata.spend", "compiledCode": %q}
  ]
}`, identityCode, hash, identityCode)
}

func TestParseBlueprint(t *testing.T) {
	tmpl := testTemplate(t)
	bp, err := ParseBlueprint(testBlueprint(t, tmpl.Hash().String()))
	require.NoError(t, err)

	got, err := bp.Template("quorum.mint")
	require.NoError(t, err)
	assert.Equal(t, tmpl, got)

	got, err = bp.Template("metadata")
	require.NoError(t, err)
	assert.Equal(t, "metadata.spend", got.Title)

	_, err = bp.Template("missing")
	assert.ErrorIs(t, err, ErrValidatorNotFound)
}

func TestParseBlueprintHashMismatch(t *testing.T) {
	_, err := ParseBlueprint(testBlueprint(t, strings.Repeat("00", 28)))
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestNewContracts(t *testing.T) {
	tmpl := testTemplate(t)
	bp, err := ParseBlueprint(testBlueprint(t, tmpl.Hash().String()))
	require.NoError(t, err)
	preview, err := NetworkByName("preview")
	require.NoError(t, err)
	votingHash := lcommon.NewBlake2b224(bytes.Repeat([]byte{0x77}, 28))
	votingAddr, err := ScriptAddress(votingHash, preview)
	require.NoError(t, err)

	c, err := NewContracts(ContractsConfig{
		Blueprint:    bp,
		Network:      "preview",
		MintTitle:    "quorum.mint",
		Metadata:     ValidatorConfig{Title: "metadata"},
		Distribution: ValidatorConfig{Title: "metadata.spend"},
		Voting:       ValidatorConfig{Address: votingAddr.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, tmpl.Hash(), c.Metadata.Hash)
	require.NotNil(t, c.Metadata.Template)
	assert.Nil(t, c.Voting.Template)
	assert.Equal(t, votingHash, c.Voting.Hash)

	ref := testRef(t, "c3", 2)
	policy, err := c.PolicyFor(ref)
	require.NoError(t, err)
	require.NoError(t, c.VerifyPolicy("test", policy, ref))
	assert.ErrorIs(
		t,
		c.VerifyPolicy("test", policy, testRef(t, "c3", 3)),
		ErrIdentityMismatch,
	)

	_, err = NewContracts(ContractsConfig{
		Blueprint: bp,
		Network:   "preview",
		MintTitle: "quorum.mint",
		Metadata:  ValidatorConfig{Title: "metadata", Address: votingAddr.String()},
	})
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}
