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
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/utxo"
	"golang.org/x/crypto/blake2b"
)

// witness set key holding vkey witnesses
const witnessKeyVkey = 0

// KeyWallet holds a single payment key and an enterprise address. Its outputs
// come from an indexer and signed transactions go to a Submitter.
type KeyWallet struct {
	logger    *slog.Logger
	indexer   indexer.Indexer
	submitter Submitter
	skey      ed25519.PrivateKey
	keyHash   lcommon.Blake2b224
	address   string
}

type KeyWalletOptionFunc func(*KeyWallet)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) KeyWalletOptionFunc {
	return func(w *KeyWallet) {
		w.logger = logger
	}
}

// WithSubmitter sets where SubmitTx sends transactions
func WithSubmitter(submitter Submitter) KeyWalletOptionFunc {
	return func(w *KeyWallet) {
		w.submitter = submitter
	}
}

// NewKeyWallet creates a wallet for skey on network, listing outputs through idx
func NewKeyWallet(
	skey ed25519.PrivateKey,
	network contract.Network,
	idx indexer.Indexer,
	opts ...KeyWalletOptionFunc,
) (*KeyWallet, error) {
	w := &KeyWallet{
		skey:    skey,
		indexer: idx,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	w.logger = w.logger.With("component", "wallet")
	vkey, ok := skey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key type", ErrUnsupportedKey)
	}
	w.keyHash = lcommon.Blake2b224Hash(vkey)
	addr, err := contract.KeyAddress(w.keyHash, network)
	if err != nil {
		return nil, err
	}
	w.address = addr.String()
	return w, nil
}

// KeyHash returns the payment key hash
func (w *KeyWallet) KeyHash() lcommon.Blake2b224 {
	return w.keyHash
}

func (w *KeyWallet) Addresses(context.Context) ([]string, error) {
	return []string{w.address}, nil
}

func (w *KeyWallet) Utxos(ctx context.Context) ([]utxo.Utxo, error) {
	return w.indexer.UtxosAt(ctx, w.address)
}

// SignTx adds a vkey witness over the body hash, keeping the body bytes intact
func (w *KeyWallet) SignTx(_ context.Context, txCbor []byte) ([]byte, error) {
	signed, txHash, err := AddVkeyWitness(txCbor, w.skey)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("signed transaction", "tx_hash", txHash)
	return signed, nil
}

func (w *KeyWallet) SubmitTx(ctx context.Context, txCbor []byte) (string, error) {
	if w.submitter == nil {
		return "", ErrNoSubmitter
	}
	return w.submitter.SubmitTx(ctx, txCbor)
}

// AddVkeyWitness signs the body of a [body, witnesses, valid, aux] transaction
// with skey and returns the re-encoded transaction and its hash. Body and
// auxiliary data are carried over byte for byte.
func AddVkeyWitness(
	txCbor []byte,
	skey ed25519.PrivateKey,
) ([]byte, string, error) {
	var parts []cbor.RawMessage
	if _, err := cbor.Decode(txCbor, &parts); err != nil {
		return nil, "", fmt.Errorf("decode transaction: %w", err)
	}
	if len(parts) != 4 {
		return nil, "", fmt.Errorf(
			"decode transaction: expected 4 elements, got %d",
			len(parts),
		)
	}
	bodyHash := blake2b.Sum256(parts[0])
	witnessSet := map[uint]cbor.RawMessage{}
	if _, err := cbor.Decode(parts[1], &witnessSet); err != nil {
		return nil, "", fmt.Errorf("decode witness set: %w", err)
	}
	var vkeyWitnesses []lcommon.VkeyWitness
	if raw, ok := witnessSet[witnessKeyVkey]; ok {
		if _, err := cbor.Decode(raw, &vkeyWitnesses); err != nil {
			return nil, "", fmt.Errorf("decode vkey witnesses: %w", err)
		}
	}
	vkey, ok := skey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, "", fmt.Errorf("%w: public key type", ErrUnsupportedKey)
	}
	vkeyWitnesses = append(vkeyWitnesses, lcommon.VkeyWitness{
		Vkey:      vkey,
		Signature: ed25519.Sign(skey, bodyHash[:]),
	})
	rawWitnesses, err := cbor.Encode(vkeyWitnesses)
	if err != nil {
		return nil, "", fmt.Errorf("encode vkey witnesses: %w", err)
	}
	witnessSet[witnessKeyVkey] = rawWitnesses
	rawWitnessSet, err := cbor.Encode(witnessSet)
	if err != nil {
		return nil, "", fmt.Errorf("encode witness set: %w", err)
	}
	parts[1] = rawWitnessSet
	signed, err := cbor.Encode(parts)
	if err != nil {
		return nil, "", fmt.Errorf("encode transaction: %w", err)
	}
	return signed, hex.EncodeToString(bodyHash[:]), nil
}
