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
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// APIError is returned when the server responds with a status code
// outside the 2xx range. The policy is deliberately permissive: any
// numeric status works, including non-standard codes, since cluster
// APIs and their proxies are not guaranteed to stick to the registry.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Body is the raw, unparsed response payload.
	Body []byte
}

func (e *APIError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, string(e.Body))
}

// TimeoutError is returned when a request or stream exceeds its
// allotted time. It is a distinct type so that callers can tell an
// elapsed deadline apart from a server-side failure.
type TimeoutError struct {
	// Timeout is the limit that was exceeded, zero when the deadline
	// came from the caller's context.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("operation timed out after %s", e.Timeout)
	}
	return "operation timed out"
}

// DecodeError is returned when a success-status response body turns
// out not to be valid JSON. Callers that expect non-JSON payloads
// should use the raw Do primitive instead of the typed helpers.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response body: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// isTimeout reports whether a transport-level error was caused by an
// elapsed deadline rather than a genuine connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
