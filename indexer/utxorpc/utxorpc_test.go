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
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cardano "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
	query "github.com/utxorpc/go-codegen/utxorpc/v1alpha/query"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/query/queryconnect"
	submit "github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit/submitconnect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type fakeQuery struct {
	queryconnect.UnimplementedQueryServiceHandler
	addrBytes []byte
	outCbor   []byte
	txHash    []byte
	apiKey    string
	total     int
	malformed map[int]bool
	params    *cardano.PParams
}

func (f *fakeQuery) SearchUtxos(
	ctx context.Context,
	req *connect.Request[query.SearchUtxosRequest],
) (*connect.Response[query.SearchUtxosResponse], error) {
	if req.Header().Get("dmtr-api-key") != f.apiKey {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("bad key"))
	}
	addr := req.Msg.GetPredicate().GetMatch().GetCardano().GetAddress().GetExactAddress()
	if !bytes.Equal(addr, f.addrBytes) {
		return connect.NewResponse(&query.SearchUtxosResponse{}), nil
	}
	start := 0
	if tok := req.Msg.GetStartToken(); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+int(req.Msg.GetMaxItems()), f.total)
	resp := &query.SearchUtxosResponse{}
	for i := start; i < end; i++ {
		outCbor := f.outCbor
		if f.malformed[i] {
			outCbor = []byte{0xff}
		}
		resp.Items = append(resp.Items, &query.AnyUtxoData{
			NativeBytes: outCbor,
			TxoRef: &query.TxoRef{
				Hash:  f.txHash,
				Index: uint32(i),
			},
		})
	}
	if end < f.total {
		resp.NextToken = strconv.Itoa(end)
	}
	return connect.NewResponse(resp), nil
}

func (f *fakeQuery) ReadTx(
	ctx context.Context,
	req *connect.Request[query.ReadTxRequest],
) (*connect.Response[query.ReadTxResponse], error) {
	if !bytes.Equal(req.Msg.GetHash(), f.txHash) {
		return nil, connect.NewError(
			connect.CodeNotFound,
			fmt.Errorf("transaction not found: %x", req.Msg.GetHash()),
		)
	}
	return connect.NewResponse(&query.ReadTxResponse{
		Tx: &query.AnyChainTx{
			BlockRef: &query.ChainPoint{Slot: 5000},
		},
	}), nil
}

func (f *fakeQuery) ReadParams(
	ctx context.Context,
	req *connect.Request[query.ReadParamsRequest],
) (*connect.Response[query.ReadParamsResponse], error) {
	if f.params == nil {
		return connect.NewResponse(&query.ReadParamsResponse{}), nil
	}
	return connect.NewResponse(&query.ReadParamsResponse{
		Values: &query.AnyChainParams{
			Params: &query.AnyChainParams_Cardano{Cardano: f.params},
		},
	}), nil
}

type fakeSubmit struct {
	submitconnect.UnimplementedSubmitServiceHandler
	txHash []byte
}

func (f *fakeSubmit) SubmitTx(
	ctx context.Context,
	req *connect.Request[submit.SubmitTxRequest],
) (*connect.Response[submit.SubmitTxResponse], error) {
	txs := req.Msg.GetTx()
	if len(txs) != 1 || len(txs[0].GetRaw()) < 2 {
		return nil, connect.NewError(
			connect.CodeInvalidArgument,
			errors.New("BadInputsUTxO"),
		)
	}
	return connect.NewResponse(&submit.SubmitTxResponse{
		Ref: [][]byte{f.txHash},
	}), nil
}

func newTestServer(t *testing.T, q *fakeQuery, s *fakeSubmit) *Client {
	t.Helper()
	mux := http.NewServeMux()
	queryPath, queryHandler := queryconnect.NewQueryServiceHandler(q)
	mux.Handle(queryPath, queryHandler)
	submitPath, submitHandler := submitconnect.NewSubmitServiceHandler(s)
	mux.Handle(submitPath, submitHandler)
	srv := httptest.NewServer(h2c.NewHandler(mux, &http2.Server{}))
	t.Cleanup(srv.Close)
	slotConfig, err := indexer.SlotConfigForNetwork("preview")
	require.NoError(t, err)
	return NewClient(
		srv.URL,
		WithHeader("dmtr-api-key", q.apiKey),
		WithSlotConfig(slotConfig),
	)
}

func testFixture(t *testing.T) (*fakeQuery, string) {
	t.Helper()
	keyHash := bytes.Repeat([]byte{0x11}, 28)
	addr, err := lcommon.NewAddressFromParts(
		lcommon.AddressTypeKeyNone,
		lcommon.AddressNetworkTestnet,
		keyHash,
		nil,
	)
	require.NoError(t, err)
	addrBytes, err := addr.Bytes()
	require.NoError(t, err)
	outCbor, err := cbor.Encode([]any{addrBytes, uint64(3000000)})
	require.NoError(t, err)
	return &fakeQuery{
		addrBytes: addrBytes,
		outCbor:   outCbor,
		txHash:    bytes.Repeat([]byte{0xab}, 32),
		apiKey:    "secret",
		total:     150,
	}, addr.String()
}

func TestUtxosAtPaginates(t *testing.T) {
	q, addr := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{})
	utxos, err := c.UtxosAt(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, utxos, 150)
	assert.Equal(t, uint64(3000000), utxos[0].Lovelace)
	assert.Equal(t, uint32(149), utxos[149].Ref.Index)
	assert.Equal(t, addr, utxos[0].Address)
}

func TestUtxosAtSkipsMalformedOutput(t *testing.T) {
	q, addr := testFixture(t)
	q.total = 5
	q.malformed = map[int]bool{2: true}
	c := newTestServer(t, q, &fakeSubmit{})
	utxos, err := c.UtxosAt(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, utxos, 4)
	for _, u := range utxos {
		assert.NotEqual(t, uint32(2), u.Ref.Index)
	}
}

func TestProtocolParams(t *testing.T) {
	q, _ := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{})
	_, err := c.ProtocolParams(context.Background())
	assert.ErrorIs(t, err, indexer.ErrRemoteUnavailable)

	q.params = &cardano.PParams{
		CoinsPerUtxoByte:     4310,
		MaxTxSize:            16384,
		MinFeeCoefficient:    44,
		MinFeeConstant:       155381,
		CollateralPercentage: 150,
		MaxCollateralInputs:  3,
		Prices: &cardano.ExPrices{
			Memory: &cardano.RationalNumber{Numerator: 577, Denominator: 10000},
			Steps:  &cardano.RationalNumber{Numerator: 721, Denominator: 10000000},
		},
		MaxExecutionUnitsPerTransaction: &cardano.ExUnits{
			Memory: 14000000,
			Steps:  10000000000,
		},
		CostModels: &cardano.CostModels{
			PlutusV2: &cardano.CostModel{Values: []int64{100, -1, 23}},
		},
	}
	pp, err := c.ProtocolParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(44), pp.MinFeeA)
	assert.Equal(t, uint64(155381), pp.MinFeeB)
	assert.Equal(t, uint64(4310), pp.CoinsPerUtxoByte)
	assert.Equal(t, uint64(16384), pp.MaxTxSize)
	assert.Equal(t, uint64(150), pp.CollateralPercent)
	assert.Equal(t, uint64(3), pp.MaxCollateralInputs)
	assert.Equal(t, uint64(14000000), pp.MaxTxExMem)
	assert.Equal(t, uint64(10000000000), pp.MaxTxExSteps)
	assert.InDelta(t, 0.0577, pp.PriceMem, 1e-9)
	assert.InDelta(t, 0.0000721, pp.PriceStep, 1e-12)
	assert.Equal(t, map[uint8][]int64{2: {100, -1, 23}}, pp.CostModels)
}

func TestUtxosAtInvalidAddress(t *testing.T) {
	q, _ := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{})
	_, err := c.UtxosAt(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.NotErrorIs(t, err, indexer.ErrRemoteUnavailable)
}

func TestUtxosAtRemoteErrorIsUnavailable(t *testing.T) {
	q, addr := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{})
	c.headers["dmtr-api-key"] = "wrong"
	_, err := c.UtxosAt(context.Background(), addr)
	assert.ErrorIs(t, err, indexer.ErrRemoteUnavailable)
}

func TestTxTime(t *testing.T) {
	q, _ := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{})
	got, err := c.TxTime(context.Background(), lcommon.NewBlake2b256(q.txHash))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1666656000+5000, 0).UTC(), got)

	_, err = c.TxTime(
		context.Background(),
		lcommon.NewBlake2b256(bytes.Repeat([]byte{0x01}, 32)),
	)
	assert.ErrorIs(t, err, indexer.ErrNotFound)
	assert.NotErrorIs(t, err, indexer.ErrRemoteUnavailable)
}

func TestSubmitTx(t *testing.T) {
	q, _ := testFixture(t)
	c := newTestServer(t, q, &fakeSubmit{txHash: q.txHash})
	hash, err := c.SubmitTx(context.Background(), []byte{0x84, 0xa0})
	require.NoError(t, err)
	assert.Equal(t, lcommon.NewBlake2b256(q.txHash).String(), hash)

	_, err = c.SubmitTx(context.Background(), []byte{0x84})
	require.Error(t, err)
	assert.NotErrorIs(t, err, indexer.ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "BadInputsUTxO")
}
