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

package utxorpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	gledger "github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/utxo"
	cardano "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
	query "github.com/utxorpc/go-codegen/utxorpc/v1alpha/query"
	submit "github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit"
)

var _ indexer.Indexer = (*Client)(nil)

// UtxosAt searches for outputs with an exact address match
func (c *Client) UtxosAt(
	ctx context.Context,
	address string,
) ([]utxo.Utxo, error) {
	addr, err := lcommon.NewAddress(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	addrBytes, err := addr.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}
	var ret []utxo.Utxo
	startToken := ""
	for page := 0; ; page++ {
		if page >= c.maxPages {
			return nil, indexer.Unavailable(
				"search utxos",
				address,
				fmt.Errorf("more than %d pages", c.maxPages),
			)
		}
		req := connect.NewRequest(&query.SearchUtxosRequest{
			Predicate: &query.UtxoPredicate{
				Match: &query.AnyUtxoPattern{
					UtxoPattern: &query.AnyUtxoPattern_Cardano{
						Cardano: &cardano.TxOutputPattern{
							Address: &cardano.AddressPattern{
								ExactAddress: addrBytes,
							},
						},
					},
				},
			},
			MaxItems:   c.pageSize,
			StartToken: startToken,
		})
		c.setHeaders(req.Header())
		resp, err := c.query.SearchUtxos(ctx, req)
		if err != nil {
			return nil, indexer.Unavailable("search utxos", address, err)
		}
		for _, item := range resp.Msg.GetItems() {
			u, err := convertUtxo(item)
			if err != nil {
				c.logger.Warn(
					"skipping malformed utxo",
					"address", address,
					"error", err,
				)
				continue
			}
			ret = append(ret, u)
		}
		startToken = resp.Msg.GetNextToken()
		if startToken == "" {
			break
		}
	}
	c.logger.Debug(
		"searched utxos",
		"address", address,
		"count", len(ret),
	)
	return ret, nil
}

func convertUtxo(item *query.AnyUtxoData) (utxo.Utxo, error) {
	txoRef := item.GetTxoRef()
	if txoRef == nil {
		return utxo.Utxo{}, errors.New("utxo without reference")
	}
	ref, err := utxo.NewOutputRef(
		hex.EncodeToString(txoRef.GetHash()),
		txoRef.GetIndex(),
	)
	if err != nil {
		return utxo.Utxo{}, err
	}
	if len(item.GetNativeBytes()) == 0 {
		return utxo.Utxo{}, fmt.Errorf("utxo %s: no native bytes", ref.String())
	}
	return utxo.FromCbor(ref, item.GetNativeBytes())
}

func (c *Client) readTx(
	ctx context.Context,
	op string,
	txHash lcommon.Blake2b256,
) (*query.AnyChainTx, error) {
	req := connect.NewRequest(&query.ReadTxRequest{
		Hash: txHash.Bytes(),
	})
	c.setHeaders(req.Header())
	resp, err := c.query.ReadTx(ctx, req)
	if err != nil {
		if connect.CodeOf(err) == connect.CodeNotFound {
			return nil, fmt.Errorf(
				"%w: transaction %s",
				indexer.ErrNotFound,
				txHash.String(),
			)
		}
		return nil, indexer.Unavailable(op, txHash.String(), err)
	}
	tx := resp.Msg.GetTx()
	if tx == nil {
		return nil, fmt.Errorf(
			"%w: transaction %s",
			indexer.ErrNotFound,
			txHash.String(),
		)
	}
	return tx, nil
}

// TxInputs decodes the transaction's native bytes and returns its spent inputs
func (c *Client) TxInputs(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) ([]utxo.OutputRef, error) {
	anyTx, err := c.readTx(ctx, "tx inputs", txHash)
	if err != nil {
		return nil, err
	}
	txBytes := anyTx.GetNativeBytes()
	txType, err := gledger.DetermineTransactionType(txBytes)
	if err != nil {
		return nil, fmt.Errorf("determine tx type: %w", err)
	}
	tx, err := gledger.NewTransactionFromCbor(txType, txBytes)
	if err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	inputs := tx.Inputs()
	ret := make([]utxo.OutputRef, 0, len(inputs))
	for _, in := range inputs {
		ret = append(ret, utxo.OutputRef{
			TxId:  in.Id(),
			Index: in.Index(),
		})
	}
	return ret, nil
}

// TxTime converts the slot of the block holding the transaction to time
func (c *Client) TxTime(
	ctx context.Context,
	txHash lcommon.Blake2b256,
) (time.Time, error) {
	anyTx, err := c.readTx(ctx, "tx time", txHash)
	if err != nil {
		return time.Time{}, err
	}
	blockRef := anyTx.GetBlockRef()
	if blockRef == nil {
		return time.Time{}, fmt.Errorf(
			"%w: transaction %s not in a block",
			indexer.ErrNotFound,
			txHash.String(),
		)
	}
	return c.slotConfig.SlotToTime(blockRef.GetSlot()), nil
}

// ProtocolParams reads the current Cardano protocol parameters
func (c *Client) ProtocolParams(
	ctx context.Context,
) (indexer.ProtocolParams, error) {
	req := connect.NewRequest(&query.ReadParamsRequest{})
	c.setHeaders(req.Header())
	resp, err := c.query.ReadParams(ctx, req)
	if err != nil {
		return indexer.ProtocolParams{}, indexer.Unavailable(
			"read params",
			"",
			err,
		)
	}
	pp := resp.Msg.GetValues().GetCardano()
	if pp == nil {
		return indexer.ProtocolParams{}, indexer.Unavailable(
			"read params",
			"",
			errors.New("no cardano parameters in response"),
		)
	}
	ret := indexer.ProtocolParams{
		MinFeeA:             pp.GetMinFeeCoefficient(),
		MinFeeB:             pp.GetMinFeeConstant(),
		CoinsPerUtxoByte:    pp.GetCoinsPerUtxoByte(),
		MaxTxSize:           pp.GetMaxTxSize(),
		CollateralPercent:   pp.GetCollateralPercentage(),
		MaxCollateralInputs: pp.GetMaxCollateralInputs(),
		MaxTxExMem:          pp.GetMaxExecutionUnitsPerTransaction().GetMemory(),
		MaxTxExSteps:        pp.GetMaxExecutionUnitsPerTransaction().GetSteps(),
		PriceMem:            rational(pp.GetPrices().GetMemory()),
		PriceStep:           rational(pp.GetPrices().GetSteps()),
		CostModels:          make(map[uint8][]int64),
	}
	costModels := pp.GetCostModels()
	if v := costModels.GetPlutusV1().GetValues(); len(v) > 0 {
		ret.CostModels[1] = v
	}
	if v := costModels.GetPlutusV2().GetValues(); len(v) > 0 {
		ret.CostModels[2] = v
	}
	if v := costModels.GetPlutusV3().GetValues(); len(v) > 0 {
		ret.CostModels[3] = v
	}
	return ret, nil
}

func rational(r *cardano.RationalNumber) float64 {
	if r == nil || r.GetDenominator() == 0 {
		return 0
	}
	return float64(r.GetNumerator()) / float64(r.GetDenominator())
}

// SubmitTx sends a signed transaction through the submit service
func (c *Client) SubmitTx(ctx context.Context, txCbor []byte) (string, error) {
	req := connect.NewRequest(&submit.SubmitTxRequest{
		Tx: []*submit.AnyChainTx{
			{Type: &submit.AnyChainTx_Raw{Raw: txCbor}},
		},
	})
	c.setHeaders(req.Header())
	resp, err := c.submit.SubmitTx(ctx, req)
	if err != nil {
		switch connect.CodeOf(err) {
		case connect.CodeInvalidArgument, connect.CodeFailedPrecondition:
			return "", fmt.Errorf("submit rejected: %w", err)
		}
		return "", indexer.Unavailable("submit tx", "", err)
	}
	refs := resp.Msg.GetRef()
	if len(refs) == 0 || len(refs[0]) == 0 {
		return "", errors.New("submit returned no transaction reference")
	}
	txHash := hex.EncodeToString(refs[0])
	c.logger.Info("submitted transaction", "tx_hash", txHash)
	return txHash, nil
}
