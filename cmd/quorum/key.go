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

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/internal/secrets"
	"github.com/blinklabs-io/quorum/wallet"
	"github.com/spf13/cobra"
)

var keyFlags = struct {
	out     string
	encrypt bool
}{}

type keyResult struct {
	Address string `json:"address"`
	KeyHash string `json:"key_hash"`
	Path    string `json:"path,omitempty"`
}

// writeSigningKey stores a new payment key at path, SOPS encrypted when
// encrypt is set. Existing files are never overwritten.
func writeSigningKey(path string, skey ed25519.PrivateKey, encrypt bool) error {
	data, err := wallet.MarshalSigningKey(skey)
	if err != nil {
		return err
	}
	if encrypt {
		data, err = secrets.Encrypt(data)
		if err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

func keyInfo(skey ed25519.PrivateKey, network string) (keyResult, error) {
	net, err := contract.NetworkByName(network)
	if err != nil {
		return keyResult{}, err
	}
	vkey, ok := skey.Public().(ed25519.PublicKey)
	if !ok {
		return keyResult{}, errors.New("unexpected public key type")
	}
	keyHash := lcommon.Blake2b224Hash(vkey)
	addr, err := contract.KeyAddress(keyHash, net)
	if err != nil {
		return keyResult{}, err
	}
	return keyResult{
		Address: addr.String(),
		KeyHash: keyHash.String(),
	}, nil
}

func keyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the payment signing key",
	}
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a payment signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			if keyFlags.out == "" {
				return errors.New("--out is required")
			}
			_, skey, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			if err := writeSigningKey(keyFlags.out, skey, keyFlags.encrypt); err != nil {
				return err
			}
			res, err := keyInfo(skey, cfg.Network)
			if err != nil {
				return err
			}
			res.Path = keyFlags.out
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	generateCmd.Flags().StringVar(&keyFlags.out, "out", "", "path of the new key file")
	generateCmd.Flags().BoolVar(
		&keyFlags.encrypt,
		"encrypt",
		false,
		"encrypt the key with SOPS using the KMS keys named in the environment",
	)
	addressCmd := &cobra.Command{
		Use:   "address",
		Short: "Show the address of the configured signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			if cfg.SigningKeyFile == "" {
				return errors.New("no signingKeyFile configured")
			}
			skey, err := wallet.LoadSigningKey(cfg.SigningKeyFile)
			if err != nil {
				return err
			}
			res, err := keyInfo(skey, cfg.Network)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.AddCommand(generateCmd, addressCmd)
	return cmd
}
