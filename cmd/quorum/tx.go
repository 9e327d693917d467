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
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/internal/config"
	"github.com/blinklabs-io/quorum/internal/service"
	"github.com/blinklabs-io/quorum/txbuilder"
	"github.com/spf13/cobra"
)

type txResult struct {
	Kind          string          `json:"kind"`
	Backend       string          `json:"backend"`
	PolicyId      string          `json:"policy_id"`
	BaseAssetName string          `json:"base_asset_name"`
	ParamRef      string          `json:"param_ref,omitempty"`
	TxHash        string          `json:"tx_hash,omitempty"`
	TxCbor        string          `json:"tx_cbor,omitempty"`
	Plan          json.RawMessage `json:"plan,omitempty"`
	Fee           uint64          `json:"fee,omitempty"`
	Submitted     bool            `json:"submitted"`
}

type buildFunc func(
	ctx context.Context,
	b *txbuilder.Builder,
) (*txbuilder.Assembled, error)

// runTx builds a transaction and, unless it is a dry run or the backend
// only emits a plan, signs and submits it
func runTx(cmd *cobra.Command, cfg *config.Config, build buildFunc) {
	logger := commonRun()
	ctx, stop := signal.NotifyContext(
		cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()
	if err := buildAndSubmit(ctx, cmd, cfg, logger, build); err != nil {
		slog.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

func buildAndSubmit(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	logger *slog.Logger,
	build buildFunc,
) error {
	svc, err := service.New(cfg, service.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()
	w, err := svc.Wallet()
	if err != nil {
		return err
	}
	b, err := svc.Builder(w)
	if err != nil {
		return err
	}
	a, err := build(ctx, b)
	if err != nil {
		return err
	}
	d := a.Draft
	res := txResult{
		Kind:          string(d.Kind),
		Backend:       a.Backend,
		PolicyId:      d.PolicyId.String(),
		BaseAssetName: hex.EncodeToString(d.BaseAssetName),
		TxHash:        a.TxHash,
		Plan:          a.Plan,
		Fee:           a.Fee,
	}
	if d.ParamRef != nil {
		res.ParamRef = d.ParamRef.String()
	}
	if a.Signable() {
		if cmdFlags.dryRun {
			res.TxCbor = hex.EncodeToString(a.TxCbor)
		} else {
			txHash, err := b.Submit(ctx, a)
			if err != nil {
				return err
			}
			res.TxHash = txHash
			res.Submitted = true
		}
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func addTxFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cmdFlags.asset, "asset", "", "base asset name as text")
	cmd.Flags().StringVar(&cmdFlags.assetHex, "asset-hex", "", "base asset name as hex")
	cmd.Flags().StringVar(&cmdFlags.message, "message", "", "transaction message")
	cmd.Flags().BoolVar(
		&cmdFlags.dryRun,
		"dry-run",
		false,
		"print the unsigned transaction instead of submitting it",
	)
}

func issueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a proposal and mint its member tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			baseName, err := parseBaseName(cmdFlags.asset, cmdFlags.assetHex)
			if err != nil {
				return err
			}
			deadline, err := parseDeadline(cmdFlags.deadline, time.Now())
			if err != nil {
				return err
			}
			members, err := memberCredentials(
				cmdFlags.members,
				cmdFlags.membersFile,
			)
			if err != nil {
				return err
			}
			req := txbuilder.IssueRequest{
				Deadline:        deadline,
				Title:           cmdFlags.title,
				Description:     cmdFlags.description,
				ExternalRefId:   cmdFlags.externalRefId,
				ExternalRefType: cmdFlags.externalRefType,
				Image:           cmdFlags.image,
				Message:         cmdFlags.message,
				BaseAssetName:   baseName,
				Members:         members,
			}
			runTx(cmd, cfg, func(
				ctx context.Context,
				b *txbuilder.Builder,
			) (*txbuilder.Assembled, error) {
				return b.Issue(ctx, req)
			})
			return nil
		},
	}
	addTxFlags(cmd)
	cmd.Flags().StringVar(&cmdFlags.title, "title", "", "proposal title")
	cmd.Flags().StringVar(&cmdFlags.description, "description", "", "proposal description")
	cmd.Flags().StringVar(&cmdFlags.externalRefId, "ref-id", "", "external reference ID")
	cmd.Flags().StringVar(&cmdFlags.externalRefType, "ref-type", "", "external reference type")
	cmd.Flags().StringVar(&cmdFlags.image, "image", "", "image URI for wallet display")
	cmd.Flags().StringVar(
		&cmdFlags.deadline,
		"deadline",
		"",
		"voting deadline as RFC 3339 time or duration from now",
	)
	cmd.Flags().StringSliceVar(&cmdFlags.members, "member", nil, "member address (repeatable)")
	cmd.Flags().StringVar(
		&cmdFlags.membersFile,
		"members-file",
		"",
		"file with one member address per line",
	)
	return cmd
}

func claimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the member token for the signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			baseName, err := parseBaseName(cmdFlags.asset, cmdFlags.assetHex)
			if err != nil {
				return err
			}
			policyId, err := parsePolicy(cmdFlags.policy)
			if err != nil {
				return err
			}
			req := txbuilder.ClaimRequest{
				Message:       cmdFlags.message,
				BaseAssetName: baseName,
				PolicyId:      policyId,
			}
			runTx(cmd, cfg, func(
				ctx context.Context,
				b *txbuilder.Builder,
			) (*txbuilder.Assembled, error) {
				return b.Claim(ctx, req)
			})
			return nil
		},
	}
	addTxFlags(cmd)
	cmd.Flags().StringVar(&cmdFlags.policy, "policy", "", "proposal policy ID (hex)")
	return cmd
}

func voteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Vote on a proposal by locking the member token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			baseName, err := parseBaseName(cmdFlags.asset, cmdFlags.assetHex)
			if err != nil {
				return err
			}
			policyId, err := parsePolicy(cmdFlags.policy)
			if err != nil {
				return err
			}
			choice, err := datum.ParseVote(cmdFlags.choice)
			if err != nil {
				return err
			}
			req := txbuilder.VoteRequest{
				Message:       cmdFlags.message,
				BaseAssetName: baseName,
				Choice:        choice,
				PolicyId:      policyId,
			}
			runTx(cmd, cfg, func(
				ctx context.Context,
				b *txbuilder.Builder,
			) (*txbuilder.Assembled, error) {
				return b.Vote(ctx, req)
			})
			return nil
		},
	}
	addTxFlags(cmd)
	cmd.Flags().StringVar(&cmdFlags.policy, "policy", "", "proposal policy ID (hex)")
	cmd.Flags().StringVar(&cmdFlags.choice, "choice", "", "vote: yes or no")
	return cmd
}
