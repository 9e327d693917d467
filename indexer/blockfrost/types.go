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

// AmountResponse is one entry of a Blockfrost amount list. Unit is
// "lovelace" or the hex policy ID followed by the hex asset name.
type AmountResponse struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// AddressUtxoResponse is an element of GET /addresses/{address}/utxos
type AddressUtxoResponse struct {
	InlineDatum *string          `json:"inline_datum"`
	DataHash    *string          `json:"data_hash"`
	Address     string           `json:"address"`
	TxHash      string           `json:"tx_hash"`
	Block       string           `json:"block"`
	Amount      []AmountResponse `json:"amount"`
	OutputIndex uint32           `json:"output_index"`
}

// TxResponse is returned by GET /txs/{hash}
type TxResponse struct {
	Hash        string `json:"hash"`
	Block       string `json:"block"`
	BlockHeight uint64 `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
	Slot        uint64 `json:"slot"`
	Index       int    `json:"index"`
}

// TxUtxoResponse is an input or output of GET /txs/{hash}/utxos
type TxUtxoResponse struct {
	InlineDatum *string          `json:"inline_datum"`
	DataHash    *string          `json:"data_hash"`
	Address     string           `json:"address"`
	TxHash      string           `json:"tx_hash"`
	Amount      []AmountResponse `json:"amount"`
	OutputIndex uint32           `json:"output_index"`
	Collateral  bool             `json:"collateral"`
	Reference   bool             `json:"reference"`
}

// TxUtxosResponse is returned by GET /txs/{hash}/utxos
type TxUtxosResponse struct {
	Hash    string           `json:"hash"`
	Inputs  []TxUtxoResponse `json:"inputs"`
	Outputs []TxUtxoResponse `json:"outputs"`
}

// ProtocolParamsResponse is returned by GET /epochs/latest/parameters.
// Only the fields used for transaction assembly are decoded.
type ProtocolParamsResponse struct {
	CostModelsRaw       map[string][]int64 `json:"cost_models_raw"`
	CoinsPerUtxoSize    *string            `json:"coins_per_utxo_size"`
	PriceMem            *float64           `json:"price_mem"`
	PriceStep           *float64           `json:"price_step"`
	MaxTxExMem          *string            `json:"max_tx_ex_mem"`
	MaxTxExSteps        *string            `json:"max_tx_ex_steps"`
	CollateralPercent   *int               `json:"collateral_percent"`
	MaxCollateralInputs *int               `json:"max_collateral_inputs"`
	Epoch               uint64             `json:"epoch"`
	MinFeeA             int                `json:"min_fee_a"`
	MinFeeB             int                `json:"min_fee_b"`
	MaxTxSize           int                `json:"max_tx_size"`
}

// ErrorResponse represents a Blockfrost error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}
