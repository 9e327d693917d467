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
	"log/slog"
	"os"
	"time"

	"github.com/blinklabs-io/quorum/api"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/internal/config"
	"github.com/blinklabs-io/quorum/internal/service"
	"github.com/spf13/cobra"
)

type queryFunc func(ctx context.Context, svc *service.Service) (any, error)

// runQuery opens the service without a wallet and prints the result as JSON
func runQuery(cmd *cobra.Command, cfg *config.Config, query queryFunc) {
	logger := commonRun()
	err := func() error {
		svc, err := service.New(cfg, service.WithLogger(logger))
		if err != nil {
			return err
		}
		defer svc.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		res, err := query(ctx, svc)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	}()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

type proposalsResult struct {
	Proposals []api.ProposalResponse `json:"proposals"`
	Skipped   []string               `json:"skipped,omitempty"`
}

func proposalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "proposals",
		Short: "List proposals with their current votes",
		Run: func(cmd *cobra.Command, args []string) {
			runQuery(cmd, configFromCommand(cmd), func(
				ctx context.Context,
				svc *service.Service,
			) (any, error) {
				list, err := svc.Reconstructor().ListProposals(ctx)
				if err != nil {
					return nil, err
				}
				res := proposalsResult{
					Proposals: make([]api.ProposalResponse, 0, len(list.Proposals)),
				}
				for _, p := range list.Proposals {
					res.Proposals = append(res.Proposals, api.NewProposalResponse(p))
				}
				for _, w := range list.Warnings {
					res.Skipped = append(res.Skipped, w.String())
				}
				return res, nil
			})
		},
	}
}

func tallyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Count the votes cast for a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			policyId, err := parsePolicy(cmdFlags.policy)
			if err != nil {
				return err
			}
			var baseName []byte
			if cmdFlags.asset != "" || cmdFlags.assetHex != "" {
				baseName, err = parseBaseName(cmdFlags.asset, cmdFlags.assetHex)
				if err != nil {
					return err
				}
			}
			runQuery(cmd, cfg, func(
				ctx context.Context,
				svc *service.Service,
			) (any, error) {
				if baseName == nil {
					summary, err := svc.Reconstructor().Proposal(ctx, policyId)
					if err != nil {
						return nil, err
					}
					baseName = summary.Record.BaseAssetName
				}
				tally, err := svc.Reconstructor().Tally(
					ctx,
					policyId,
					contract.UserName(baseName),
				)
				if err != nil {
					return nil, err
				}
				return api.TallyResponse{
					PolicyId:      tally.PolicyId.String(),
					BaseAssetName: hex.EncodeToString(baseName),
					Yes:           tally.Yes,
					No:            tally.No,
					Votes:         tally.Votes(),
					Skipped:       len(tally.Skipped),
				}, nil
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&cmdFlags.policy, "policy", "", "proposal policy ID (hex)")
	cmd.Flags().StringVar(&cmdFlags.asset, "asset", "", "base asset name as text")
	cmd.Flags().StringVar(&cmdFlags.assetHex, "asset-hex", "", "base asset name as hex")
	return cmd
}

type paramResult struct {
	PolicyId string `json:"policy_id"`
	ParamRef string `json:"param_ref"`
}

func paramsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect the policy parameters recorded at issuance",
		Run: func(cmd *cobra.Command, args []string) {
			runQuery(cmd, configFromCommand(cmd), func(
				_ context.Context,
				svc *service.Service,
			) (any, error) {
				entries, err := svc.Params().List()
				if err != nil {
					return nil, err
				}
				res := make([]paramResult, 0, len(entries))
				for _, e := range entries {
					res = append(res, paramResult{
						PolicyId: e.PolicyId.String(),
						ParamRef: e.Ref.String(),
					})
				}
				return res, nil
			})
		},
	}
	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover the parameter a proposal policy was derived from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			policyId, err := parsePolicy(cmdFlags.policy)
			if err != nil {
				return err
			}
			runQuery(cmd, cfg, func(
				ctx context.Context,
				svc *service.Service,
			) (any, error) {
				ref, err := svc.Reconstructor().RecoverParameter(ctx, policyId)
				if err != nil {
					return nil, err
				}
				return paramResult{
					PolicyId: policyId.String(),
					ParamRef: ref.String(),
				}, nil
			})
			return nil
		},
	}
	recoverCmd.Flags().StringVar(&cmdFlags.policy, "policy", "", "proposal policy ID (hex)")
	cmd.AddCommand(recoverCmd)
	return cmd
}
