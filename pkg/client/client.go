/*
Copyright 2025 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
)

// Config holds the settings for creating a Client.
type Config struct {
	// Server is the base URL of the cluster API
	// (e.g. "https://kubernetes.default.svc"). Relative request URLs
	// are resolved against it by plain concatenation.
	Server string

	// HTTPClient is used for all requests. If nil, a pooled client
	// from go-cleanhttp is used.
	HTTPClient *http.Client

	// Headers are applied to every request (e.g. an Authorization
	// header). Per-request headers take precedence on conflict.
	Headers http.Header

	// Logger is used for structured logging. If unset, logging
	// is discarded.
	Logger logr.Logger
}

// Client issues requests and opens watch streams against a single
// cluster API server. It performs no retries and recovers from
// nothing: every failure is surfaced to the caller, and retry policy
// belongs to the loop driving the controller.
type Client struct {
	server     string
	httpClient *http.Client
	headers    http.Header
	logger     logr.Logger
}

// RequestOptions carries the optional parts of a single request.
// The zero value means: no payload, no extra headers, no deadline
// beyond the caller's context.
type RequestOptions struct {
	// Payload is JSON-encoded into the request body when non-nil.
	Payload any

	// Headers are added to the request.
	Headers http.Header

	// Timeout bounds the whole call, connection included.
	Timeout time.Duration
}

// Response is the raw result of a request: status, headers and the
// unparsed body. The body is fully read and the connection released
// before Response is returned.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client for the given API server.
func NewClient(config Config) (*Client, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("client: Server is required")
	}

	// Validate the URL structure, but store the string form with the
	// trailing slash stripped. Request URLs are built by direct
	// concatenation so that the path reaches the server exactly as
	// the caller wrote it.
	parsed, err := url.Parse(config.Server)
	if err != nil {
		return nil, fmt.Errorf("client: invalid Server URL %q: %w", config.Server, err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("client: Server URL %q must be absolute", config.Server)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	logger := config.Logger
	if logger.IsZero() {
		logger = logr.Discard()
	}

	return &Client{
		server:     strings.TrimRight(config.Server, "/"),
		httpClient: httpClient,
		headers:    config.Headers,
		logger:     logger,
	}, nil
}

// Server returns the configured API server base URL.
func (c *Client) Server() string {
	return c.server
}

// CloseIdleConnections drops idle connections from the underlying
// transport's pool. Call after a network disruption so the next
// request opens a fresh connection instead of reusing a broken one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// resolveURL passes absolute URLs through untouched and resolves
// relative ones against the configured server by concatenation.
// Absolute URLs allow pointing a single call at a different host,
// e.g. for diagnostics against a proxy.
func (c *Client) resolveURL(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.IsAbs() {
		return rawURL
	}
	return c.server + rawURL
}

// applyHeaders sets the client-wide default headers, then the
// per-request ones on top.
func (c *Client) applyHeaders(request *http.Request, extra http.Header) {
	for key, values := range c.headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	for key, values := range extra {
		request.Header.Del(key)
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
}
