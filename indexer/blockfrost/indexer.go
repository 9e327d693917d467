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

package blockfrost

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/utxo"
)

var _ indexer.Indexer = (*Client)(nil)

// UtxosAt pages through GET /addresses/{address}/utxos
func (c *Client) UtxosAt(
	ctx context.Context,
	address string,
) ([]utxo.Utxo, error) {
	var ret []utxo.Utxo
	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, indexer.Unavailable(
				"list utxos",
				address,
				fmt.Errorf("more than %d pages", c.maxPages),
			)
		}
		path := fmt.Sprintf(
			"/addresses/%s/utxos?count=%d&page=%d&order=asc",
			url.PathEscape(address),
			c.pageSize,
			page,
		)
		var items []AddressUtxoResponse
		if err := c.getJSON(ctx, path, &items); err != nil {
			// Blockfrost answers 404 for addresses with no history
			if errors.Is(err, indexer.ErrNotFound) {
				return ret, nil
			}
			return nil, indexer.Unavailable("list utxos", address, err)
		}
		for _, item := range items {
			u, err := convertUtxo(
				item.TxHash,
				item.OutputIndex,
				item.Address,
				item.Amount,
				item.InlineDatum,
				item.DataHash,
			)
			if err != nil {
				// One undecodable output must not hide the rest
				c.logger.Warn(
					"skipping malformed utxo",
					"address", address,
					"error", err,
				)
				continue
			}
			ret = append(ret, u)
		}
		if len(items) < c.pageSize {
			break
		}
	}
	c.logger.Debug(
		"listed utxos",
		"address", address,
		"count", len(ret),
	)
	return ret, nil
}

// TxInputs returns the spent inputs of a transaction, excluding collateral
// and reference inputs
func (c *Client) TxInputs(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) ([]utxo.OutputRef, error) {
	var resp TxUtxosResponse
	if err := c.getJSON(ctx, "/txs/"+txHash.String()+"/utxos", &resp); err != nil {
		return nil, indexer.Unavailable("tx inputs", txHash.String(), err)
	}
	ret := make([]utxo.OutputRef, 0, len(resp.Inputs))
	for _, in := range resp.Inputs {
		if in.Collateral || in.Reference {
			continue
		}
		ref, err := utxo.NewOutputRef(in.TxHash, in.OutputIndex)
		if err != nil {
			return nil, fmt.Errorf("tx %s input: %w", txHash.String(), err)
		}
		ret = append(ret, ref)
	}
	return ret, nil
}

// TxTime returns the block time of a confirmed transaction
func (c *Client) TxTime(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) (time.Time, error) {
	var resp TxResponse
	if err := c.getJSON(ctx, "/txs/"+txHash.String(), &resp); err != nil {
		return time.Time{}, indexer.Unavailable("tx time", txHash.String(), err)
	}
	return time.Unix(resp.BlockTime, 0).UTC(), nil
}

// ProtocolParams fetches GET /epochs/latest/parameters
func (c *Client) ProtocolParams(
	ctx context.Context,
) (indexer.ProtocolParams, error) {
	var resp ProtocolParamsResponse
	if err := c.getJSON(ctx, "/epochs/latest/parameters", &resp); err != nil {
		return indexer.ProtocolParams{}, indexer.Unavailable(
			"protocol params",
			"",
			err,
		)
	}
	ret := indexer.ProtocolParams{
		MinFeeA:    uint64(max(resp.MinFeeA, 0)),
		MinFeeB:    uint64(max(resp.MinFeeB, 0)),
		MaxTxSize:  uint64(max(resp.MaxTxSize, 0)),
		CostModels: make(map[uint8][]int64),
	}
	if resp.CoinsPerUtxoSize != nil {
		ret.CoinsPerUtxoByte, _ = strconv.ParseUint(*resp.CoinsPerUtxoSize, 10, 64)
	}
	if resp.PriceMem != nil {
		ret.PriceMem = *resp.PriceMem
	}
	if resp.PriceStep != nil {
		ret.PriceStep = *resp.PriceStep
	}
	if resp.MaxTxExMem != nil {
		ret.MaxTxExMem, _ = strconv.ParseUint(*resp.MaxTxExMem, 10, 64)
	}
	if resp.MaxTxExSteps != nil {
		ret.MaxTxExSteps, _ = strconv.ParseUint(*resp.MaxTxExSteps, 10, 64)
	}
	if resp.CollateralPercent != nil {
		ret.CollateralPercent = uint64(max(*resp.CollateralPercent, 0))
	}
	if resp.MaxCollateralInputs != nil {
		ret.MaxCollateralInputs = uint64(max(*resp.MaxCollateralInputs, 0))
	}
	for name, values := range resp.CostModelsRaw {
		switch name {
		case "PlutusV1":
			ret.CostModels[1] = values
		case "PlutusV2":
			ret.CostModels[2] = values
		case "PlutusV3":
			ret.CostModels[3] = values
		}
	}
	return ret, nil
}

// SubmitTx posts a signed transaction to /tx/submit and returns its hash
func (c *Client) SubmitTx(ctx context.Context, txCbor []byte) (string, error) {
	var txHash string
	if err := c.do(
		ctx,
		http.MethodPost,
		"/tx/submit",
		"application/cbor",
		txCbor,
		&txHash,
	); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			// rejected by the node, not an availability problem
			return "", fmt.Errorf("submit rejected: %w", err)
		}
		return "", indexer.Unavailable("submit tx", "", err)
	}
	c.logger.Info("submitted transaction", "tx_hash", txHash)
	return txHash, nil
}

func convertUtxo(
	txHash string,
	outputIndex uint32,
	address string,
	amounts []AmountResponse,
	inlineDatum *string,
	dataHash *string,
) (utxo.Utxo, error) {
	ref, err := utxo.NewOutputRef(txHash, outputIndex)
	if err != nil {
		return utxo.Utxo{}, err
	}
	ret := utxo.Utxo{
		Ref:     ref,
		Address: address,
	}
	for _, amount := range amounts {
		qty, err := strconv.ParseUint(amount.Quantity, 10, 64)
		if err != nil {
			return utxo.Utxo{}, fmt.Errorf(
				"utxo %s: quantity %q: %w",
				ref.String(),
				amount.Quantity,
				err,
			)
		}
		if amount.Unit == "lovelace" {
			ret.Lovelace = qty
			continue
		}
		unit, err := hex.DecodeString(amount.Unit)
		if err != nil || len(unit) < 28 {
			return utxo.Utxo{}, fmt.Errorf(
				"utxo %s: invalid unit %q",
				ref.String(),
				amount.Unit,
			)
		}
		ret.Assets = append(ret.Assets, utxo.Asset{
			PolicyId: lcommon.NewBlake2b224(unit[:28]),
			Name:     unit[28:],
			Quantity: qty,
		})
	}
	if inlineDatum != nil && *inlineDatum != "" {
		ret.Datum, err = hex.DecodeString(*inlineDatum)
		if err != nil {
			return utxo.Utxo{}, fmt.Errorf(
				"utxo %s: inline datum: %w",
				ref.String(),
				err,
			)
		}
	}
	if dataHash != nil && *dataHash != "" {
		ret.DatumHash, err = hex.DecodeString(*dataHash)
		if err != nil {
			return utxo.Utxo{}, fmt.Errorf(
				"utxo %s: datum hash: %w",
				ref.String(),
				err,
			)
		}
	}
	return ret, nil
}
