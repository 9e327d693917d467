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

package api

// RootResponse is returned by GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// ProposalResponse describes one proposal and its current votes
type ProposalResponse struct {
	PolicyId            string `json:"policy_id"`
	BaseAssetName       string `json:"base_asset_name"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	ExternalRefId       string `json:"external_ref_id"`
	ExternalRefType     string `json:"external_ref_type"`
	MetadataAddress     string `json:"metadata_address"`
	DistributionAddress string `json:"distribution_address"`
	OutputRef           string `json:"output_ref"`
	Status              string `json:"status"`
	IssuedAt            int64  `json:"issued_at,omitempty"`
	Deadline            int64  `json:"deadline"`
	TotalMembers        uint64 `json:"total_members"`
	RequiredVotes       uint64 `json:"required_votes"`
	Yes                 uint64 `json:"yes"`
	No                  uint64 `json:"no"`
}

// TallyResponse is returned by GET /api/v0/proposals/{policy}/tally
type TallyResponse struct {
	PolicyId      string `json:"policy_id"`
	BaseAssetName string `json:"base_asset_name"`
	Yes           uint64 `json:"yes"`
	No            uint64 `json:"no"`
	Votes         uint64 `json:"votes"`
	Skipped       int    `json:"skipped"`
}

// SubmissionResponse is one journaled submission
type SubmissionResponse struct {
	TxHash        string `json:"tx_hash"`
	Kind          string `json:"kind"`
	PolicyId      string `json:"policy_id"`
	BaseAssetName string `json:"base_asset_name"`
	ParamRef      string `json:"param_ref,omitempty"`
	SubmittedAt   int64  `json:"submitted_at"`
}
