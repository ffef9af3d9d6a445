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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Do performs one request and returns the raw response. The body is
// never parsed, whatever its content type. Any status outside the
// 2xx range is escalated to an *APIError carrying the status and the
// raw payload; an elapsed deadline is a *TimeoutError.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts RequestOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	request, err := c.newRequest(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Timeout: opts.Timeout}
		}
		return nil, fmt.Errorf("client: %s %s: %w", method, rawURL, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Timeout: opts.Timeout}
		}
		return nil, fmt.Errorf("client: reading response of %s %s: %w", method, rawURL, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &APIError{StatusCode: response.StatusCode, Body: body}
	}

	c.logger.V(1).Info("request completed",
		"method", method, "url", rawURL, "status", response.StatusCode)

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request and parses the response body as JSON.
func (c *Client) Get(ctx context.Context, rawURL string, opts RequestOptions) (any, error) {
	return c.parsed(ctx, http.MethodGet, rawURL, opts)
}

// Post performs a POST request and parses the response body as JSON.
func (c *Client) Post(ctx context.Context, rawURL string, opts RequestOptions) (any, error) {
	return c.parsed(ctx, http.MethodPost, rawURL, opts)
}

// Patch performs a PATCH request and parses the response body as JSON.
func (c *Client) Patch(ctx context.Context, rawURL string, opts RequestOptions) (any, error) {
	return c.parsed(ctx, http.MethodPatch, rawURL, opts)
}

// Delete performs a DELETE request and parses the response body as JSON.
func (c *Client) Delete(ctx context.Context, rawURL string, opts RequestOptions) (any, error) {
	return c.parsed(ctx, http.MethodDelete, rawURL, opts)
}

// parsed wraps Do for the typed helpers: on success the body is
// decoded as a single JSON value of whatever shape the server sent,
// object, array or scalar. Only malformed JSON on a success status is
// a *DecodeError, distinct from the API error taxonomy.
func (c *Client) parsed(ctx context.Context, method, rawURL string, opts RequestOptions) (any, error) {
	response, err := c.Do(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(response.Body, &result); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return result, nil
}

// newRequest builds the http.Request shared by Do and Stream:
// URL resolution, JSON payload encoding and header layering.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, opts RequestOptions) (*http.Request, error) {
	var bodyReader io.Reader
	if opts.Payload != nil {
		encoded, err := json.Marshal(opts.Payload)
		if err != nil {
			return nil, fmt.Errorf("client: encoding request payload: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.resolveURL(rawURL), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: building request for %s %s: %w", method, rawURL, err)
	}

	if opts.Payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(request, opts.Headers)

	return request, nil
}
