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

package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/quorum/internal/secrets"
)

const (
	KeyTypePaymentSigning = "PaymentSigningKeyShelley_ed25519"
	// limit reads to guard against pointing at a large file
	maxKeyFileSize = 1 << 20
)

// keyFileEnvelope represents the JSON structure of a cardano-cli key file
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// LoadSigningKey reads a cardano-cli payment signing key file, decrypting it
// first when it is SOPS encrypted. Files readable by group or other are
// rejected with ErrInsecureFileMode.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat key file %q: %w", path, err)
	}
	if err := checkKeyFileMode(path, info); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	data, err = secrets.MaybeDecrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key file %q: %w", path, err)
	}
	key, err := ParseSigningKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// ParseSigningKey parses the JSON envelope of a payment signing key
func ParseSigningKey(fileBytes []byte) (ed25519.PrivateKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != KeyTypePaymentSigning {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, env.Type)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var seed []byte
	if _, err := cbor.Decode(cborData, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signing key CBOR: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"invalid signing key: expected %d bytes, got %d",
			ed25519.SeedSize,
			len(seed),
		)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// MarshalSigningKey renders key in the cardano-cli envelope format
func MarshalSigningKey(key ed25519.PrivateKey) ([]byte, error) {
	cborData, err := cbor.Encode(key.Seed())
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(
		keyFileEnvelope{
			Type:        KeyTypePaymentSigning,
			Description: "Payment Signing Key",
			CborHex:     hex.EncodeToString(cborData),
		},
		"",
		"    ",
	)
}
