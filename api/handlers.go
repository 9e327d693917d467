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

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/chainstate"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/database"
	"github.com/blinklabs-io/quorum/datum"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/blinklabs-io/quorum/internal/version"
)

// HeaderSkippedCount carries the number of outputs skipped while listing
const HeaderSkippedCount = "X-Quorum-Skipped-Count"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, RootResponse{
		Name:    "quorum",
		Version: version.GetVersionString(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	list, err := s.proposals.ListProposals(r.Context())
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	proposals := list.Proposals
	if params.Order == PaginationOrderDesc {
		proposals = slices.Clone(proposals)
		slices.Reverse(proposals)
	}
	start, end := params.Bounds(len(proposals))
	resp := make([]ProposalResponse, 0, end-start)
	for _, p := range proposals[start:end] {
		resp = append(resp, NewProposalResponse(p))
	}
	SetPaginationHeaders(w, len(proposals), params)
	w.Header().Set(HeaderSkippedCount, strconv.Itoa(len(list.Warnings)))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	policyId, ok := s.policyParam(w, r)
	if !ok {
		return
	}
	summary, err := s.proposals.Proposal(r.Context(), policyId)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewProposalResponse(*summary))
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	policyId, ok := s.policyParam(w, r)
	if !ok {
		return
	}
	var baseName []byte
	if assetParam := r.URL.Query().Get("asset"); assetParam != "" {
		var err error
		baseName, err = hex.DecodeString(assetParam)
		if err != nil || len(baseName) > contract.MaxBaseNameBytes {
			s.writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"Invalid asset name.",
			)
			return
		}
	} else {
		summary, err := s.proposals.Proposal(r.Context(), policyId)
		if err != nil {
			s.writeQueryError(w, err)
			return
		}
		baseName = summary.Record.BaseAssetName
	}
	tally, err := s.proposals.Tally(
		r.Context(),
		policyId,
		contract.UserName(baseName),
	)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TallyResponse{
		PolicyId:      tally.PolicyId.String(),
		BaseAssetName: hex.EncodeToString(baseName),
		Yes:           tally.Yes,
		No:            tally.No,
		Votes:         tally.Votes(),
		Skipped:       len(tally.Skipped),
	})
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.submissions == nil {
		s.writeError(
			w,
			http.StatusNotImplemented,
			"Not Implemented",
			"Submission journal is not enabled.",
		)
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	query := r.URL.Query()
	opts := database.ListOptions{
		Order:    params.Order,
		Kind:     query.Get("kind"),
		PolicyId: query.Get("policy"),
		Count:    params.Count,
		Page:     params.Page,
	}
	rows, total, err := s.submissions.Submissions(r.Context(), opts)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	resp := make([]SubmissionResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, SubmissionResponse{
			TxHash:        row.TxHash,
			Kind:          row.Kind,
			PolicyId:      row.PolicyId,
			BaseAssetName: row.BaseAssetName,
			ParamRef:      row.ParamRef,
			SubmittedAt:   row.SubmittedAt.Unix(),
		})
	}
	SetPaginationHeaders(w, int(total), params)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) policyParam(
	w http.ResponseWriter,
	r *http.Request,
) (lcommon.Blake2b224, bool) {
	raw, err := hex.DecodeString(r.PathValue("policy"))
	if err != nil || len(raw) != len(lcommon.Blake2b224{}) {
		s.writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"Invalid policy ID.",
		)
		return lcommon.Blake2b224{}, false
	}
	return lcommon.NewBlake2b224(raw), true
}

// NewProposalResponse converts a reconstructed proposal for display
func NewProposalResponse(p chainstate.ProposalSummary) ProposalResponse {
	resp := ProposalResponse{
		PolicyId:            p.Record.PolicyId.String(),
		BaseAssetName:       hex.EncodeToString(p.Record.BaseAssetName),
		Title:               string(p.Record.Title),
		Description:         string(p.Record.Description),
		ExternalRefId:       string(p.Record.ExternalRefId),
		ExternalRefType:     string(p.Record.ExternalRefType),
		MetadataAddress:     string(p.Record.MetadataAddress),
		DistributionAddress: string(p.Record.DistributionAddress),
		OutputRef:           p.Ref.String(),
		Status:              string(p.Status),
		Deadline:            p.Record.Deadline,
		TotalMembers:        p.Record.TotalMembers,
		RequiredVotes:       p.Record.RequiredVotes,
		Yes:                 p.Yes,
		No:                  p.No,
	}
	if !p.IssuedAt.IsZero() {
		resp.IssuedAt = p.IssuedAt.UnixMilli()
	}
	return resp
}

// writeQueryError maps domain errors onto HTTP status codes
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, indexer.ErrRemoteUnavailable):
		s.writeError(
			w,
			http.StatusServiceUnavailable,
			"Service Unavailable",
			"Chain indexer is unavailable.",
		)
	case errors.Is(err, indexer.ErrNotFound),
		errors.Is(err, database.ErrNotFound):
		s.writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			"The requested component has not been found.",
		)
	case errors.Is(err, datum.ErrSchemaMismatch),
		errors.Is(err, contract.ErrIdentityMismatch),
		errors.Is(err, chainstate.ErrReferenceToken):
		s.writeError(
			w,
			http.StatusBadGateway,
			"Bad Gateway",
			err.Error(),
		)
	default:
		s.logger.Error("query failed", "error", err)
		s.writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"An unexpected error occurred.",
		)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	s.writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}
