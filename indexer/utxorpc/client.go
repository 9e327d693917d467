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

// Package utxorpc is an indexer and submitter backed by a UTxO RPC endpoint
package utxorpc

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/blinklabs-io/quorum/indexer"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/query/queryconnect"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit/submitconnect"
	"golang.org/x/net/http2"
)

// Client holds connect clients for the UTxO RPC query and submit services
type Client struct {
	logger     *slog.Logger
	query      queryconnect.QueryServiceClient
	submit     submitconnect.SubmitServiceClient
	headers    map[string]string
	httpClient *http.Client
	slotConfig indexer.SlotConfig
	pageSize   int32
	maxPages   int
}

type ClientOption func(*Client)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHeader adds a header to every request, such as an API key
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSlotConfig sets how slots map to wall-clock time
func WithSlotConfig(cfg indexer.SlotConfig) ClientOption {
	return func(c *Client) {
		c.slotConfig = cfg
	}
}

// WithMaxPages bounds paginated searches
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// NewClient returns a client for the endpoint. Plain http:// endpoints are
// spoken to over h2c.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		headers:  make(map[string]string),
		pageSize: 100,
		maxPages: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "utxorpc")
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(endpoint)
	}
	endpoint = strings.TrimRight(endpoint, "/")
	c.query = queryconnect.NewQueryServiceClient(
		c.httpClient,
		endpoint,
		connect.WithGRPC(),
	)
	c.submit = submitconnect.NewSubmitServiceClient(
		c.httpClient,
		endpoint,
		connect.WithGRPC(),
	)
	return c
}

func newHTTPClient(endpoint string) *http.Client {
	if strings.HasPrefix(endpoint, "https://") {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(
				ctx context.Context,
				network, addr string,
				_ *tls.Config,
			) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func (c *Client) setHeaders(h http.Header) {
	for k, v := range c.headers {
		h.Set(k, v)
	}
}
