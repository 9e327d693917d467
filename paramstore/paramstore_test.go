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

package paramstore

import (
	"bytes"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(b byte) lcommon.Blake2b224 {
	return lcommon.NewBlake2b224(bytes.Repeat([]byte{b}, 28))
}

func testRef(b byte, idx uint32) utxo.OutputRef {
	return utxo.OutputRef{
		TxId:  lcommon.NewBlake2b256(bytes.Repeat([]byte{b}, 32)),
		Index: idx,
	}
}

func TestPutGetInMemory(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(testPolicy(1))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(testPolicy(1), testRef(0xaa, 3)))
	got, err := s.Get(testPolicy(1))
	require.NoError(t, err)
	assert.Equal(t, testRef(0xaa, 3), got)

	// overwrite
	require.NoError(t, s.Put(testPolicy(1), testRef(0xbb, 0)))
	got, err = s.Get(testPolicy(1))
	require.NoError(t, err)
	assert.Equal(t, testRef(0xbb, 0), got)
}

func TestList(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(testPolicy(1), testRef(0x01, 0)))
	require.NoError(t, s.Put(testPolicy(2), testRef(0x02, 7)))
	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byPolicy := map[lcommon.Blake2b224]utxo.OutputRef{}
	for _, e := range entries {
		byPolicy[e.PolicyId] = e.Ref
	}
	assert.Equal(t, testRef(0x02, 7), byPolicy[testPolicy(2)])
}

func TestPersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := New(WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, s.Put(testPolicy(9), testRef(0x09, 1)))
	require.NoError(t, s.Close())

	s, err = New(WithDataDir(dir))
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(testPolicy(9))
	require.NoError(t, err)
	assert.Equal(t, testRef(0x09, 1), got)
}
