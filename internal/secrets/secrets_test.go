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

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEncrypted(t *testing.T) {
	assert.False(t, IsEncrypted([]byte(`{"type":"PaymentSigningKeyShelley_ed25519"}`)))
	assert.False(t, IsEncrypted([]byte("not json")))
	assert.True(t, IsEncrypted([]byte(`{"data":"ENC[...]","sops":{"version":"3.11.0"}}`)))
}

func TestMaybeDecryptPlaintext(t *testing.T) {
	in := []byte(`{"cborHex":"5820"}`)
	out, err := MaybeDecrypt(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncryptRequiresMasterKey(t *testing.T) {
	t.Setenv(EnvGcpKmsResourceId, "")
	t.Setenv(EnvAwsKmsKeyArns, "")
	_, err := Encrypt([]byte(`{"a":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvGcpKmsResourceId)
}

func TestEncryptRefusesDoubleEncryption(t *testing.T) {
	_, err := Encrypt([]byte(`{"data":"x","sops":{}}`))
	assert.ErrorIs(t, err, ErrAlreadyEncrypted)
}
