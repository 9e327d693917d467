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

// Package blockfrost is an indexer and submitter backed by the Blockfrost REST API
package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/quorum/indexer"
)

// DefaultBaseURLs maps network names to the public Blockfrost endpoints
var DefaultBaseURLs = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

// BaseURLForNetwork returns the default Blockfrost URL for a named network
func BaseURLForNetwork(network string) (string, error) {
	baseURL, ok := DefaultBaseURLs[network]
	if !ok {
		return "", fmt.Errorf(
			"no default Blockfrost URL for network %q",
			network,
		)
	}
	return baseURL, nil
}

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// Client talks to a Blockfrost-compatible REST API
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	projectId  string
	pageSize   int
	maxPages   int
}

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProjectId sets the project_id header sent with every request
func WithProjectId(projectId string) ClientOption {
	return func(c *Client) {
		c.projectId = projectId
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxPages bounds paginated listings. Hitting the bound is an error
// rather than a silently truncated result.
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pageSize: 100,
		maxPages: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "blockfrost")
	return c
}

// APIError is a non-success response from the API
type APIError struct {
	Body       ErrorResponse
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf(
			"blockfrost: status %d: %s",
			e.StatusCode,
			e.Body.Message,
		)
	}
	return fmt.Sprintf("blockfrost: status %d", e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == indexer.ErrNotFound && e.StatusCode == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, dest)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	contentType string,
	body []byte,
	dest any,
) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.baseURL+path,
		reqBody,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.projectId != "" {
		req.Header.Set("project_id", c.projectId)
	}
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured base URL
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return errors.New("nil response from server")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(bodyBytes, &apiErr.Body); err != nil {
			apiErr.Body.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
