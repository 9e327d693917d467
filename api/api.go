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

// Package api serves proposals, tallies and the submission journal over
// HTTP as JSON
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/chainstate"
	"github.com/blinklabs-io/quorum/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultListenAddress = ":8080"
	// ServiceName is reported by the gRPC health handler
	ServiceName = "quorum.v1.ReadService"
)

// ProposalSource answers proposal and tally queries
type ProposalSource interface {
	ListProposals(ctx context.Context) (*chainstate.ProposalList, error)
	Proposal(ctx context.Context, policyId lcommon.Blake2b224) (*chainstate.ProposalSummary, error)
	Tally(ctx context.Context, policyId lcommon.Blake2b224, userAssetName []byte) (*chainstate.TallyResult, error)
}

// SubmissionSource lists journaled submissions
type SubmissionSource interface {
	Submissions(ctx context.Context, opts database.ListOptions) ([]database.Submission, int64, error)
}

type Config struct {
	ListenAddress string
}

// Server is the read API HTTP server
type Server struct {
	config       Config
	logger       *slog.Logger
	proposals    ProposalSource
	submissions  SubmissionSource
	promRegistry prometheus.Registerer
	requests     *prometheus.CounterVec
	httpServer   *http.Server
	mu           sync.Mutex
}

type ServerOptionFunc func(*Server)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ServerOptionFunc {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSubmissions serves the submission journal
func WithSubmissions(submissions SubmissionSource) ServerOptionFunc {
	return func(s *Server) {
		s.submissions = submissions
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ServerOptionFunc {
	return func(s *Server) {
		s.promRegistry = registry
	}
}

// New creates a read API server
func New(
	cfg Config,
	proposals ProposalSource,
	opts ...ServerOptionFunc,
) *Server {
	s := &Server{
		config:    cfg,
		proposals: proposals,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "api")
	if s.config.ListenAddress == "" {
		s.config.ListenAddress = DefaultListenAddress
	}
	if s.promRegistry != nil {
		s.requests = promauto.With(s.promRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_api_requests_total",
				Help: "read API requests by route and status code",
			},
			[]string{"route", "code"},
		)
	}
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /{$}", s.handleRoot)
	s.route(mux, "GET /health", s.handleHealth)
	s.route(mux, "GET /api/v0/proposals", s.handleProposals)
	s.route(mux, "GET /api/v0/proposals/{policy}", s.handleProposal)
	s.route(mux, "GET /api/v0/proposals/{policy}/tally", s.handleTally)
	s.route(mux, "GET /api/v0/submissions", s.handleSubmissions)
	compress1KB := connect.WithCompressMinBytes(1024)
	mux.Handle(
		grpchealth.NewHandler(
			grpchealth.NewStaticChecker(ServiceName),
			compress1KB,
		),
	)
	mux.Handle(
		grpcreflect.NewHandlerV1(
			grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName),
			compress1KB,
		),
	)
	return mux
}

func (s *Server) route(
	mux *http.ServeMux,
	pattern string,
	handler http.HandlerFunc,
) {
	if s.requests == nil {
		mux.HandleFunc(pattern, handler)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		s.requests.WithLabelValues(pattern, fmt.Sprintf("%d", rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start listens and serves in a background goroutine until ctx is done or
// Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API listener started on " + ln.Addr().String())

	go func() {
		<-ctx.Done()
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
