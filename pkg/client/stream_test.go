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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
)

// collectStream drains a stream and returns all yielded records.
func collectStream(t *testing.T, stream *Stream) []any {
	t.Helper()
	defer stream.Close()

	var records []any
	for stream.Next() {
		records = append(records, stream.Record())
	}
	return records
}

func TestStream(t *testing.T) {
	t.Run("yields one record per line in input order", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// A leading blank line must be skipped, not decoded.
			fmt.Fprint(w, "\n{\"fake\": \"result1\"}\n{\"fake\": \"result2\"}\n")
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{})
		g.Expect(err).ToNot(HaveOccurred())

		records := collectStream(t, stream)
		g.Expect(stream.Err()).ToNot(HaveOccurred())

		expected := []any{
			map[string]any{"fake": "result1"},
			map[string]any{"fake": "result2"},
		}
		g.Expect(cmp.Diff(expected, records)).To(BeEmpty())
	})

	t.Run("lines decode to values of any JSON shape", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "[1, 2]\n\"result\"\ntrue\n{\"fake\": \"result\"}\n")
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{})
		g.Expect(err).ToNot(HaveOccurred())

		records := collectStream(t, stream)
		g.Expect(stream.Err()).ToNot(HaveOccurred())

		expected := []any{
			[]any{float64(1), float64(2)},
			"result",
			true,
			map[string]any{"fake": "result"},
		}
		g.Expect(cmp.Diff(expected, records)).To(BeEmpty())
	})

	t.Run("malformed lines fail the stream as decode errors", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "{\"fake\": \"result1\"}\nBAD JSON!\n{\"fake\": \"result2\"}\n")
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{})
		g.Expect(err).ToNot(HaveOccurred())

		// The lines before the malformed one are still yielded, then
		// the stream terminates without reaching the lines after it.
		records := collectStream(t, stream)
		g.Expect(records).To(HaveLen(1))
		g.Expect(records[0]).To(Equal(map[string]any{"fake": "result1"}))

		var decodeErr *DecodeError
		g.Expect(errors.As(stream.Err(), &decodeErr)).To(BeTrue())
	})

	t.Run("trailing partial lines are never yielded", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "{\"fake\": \"result1\"}\n{\"fake\": \"trunc")
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{})
		g.Expect(err).ToNot(HaveOccurred())

		records := collectStream(t, stream)
		g.Expect(stream.Err()).ToNot(HaveOccurred())
		g.Expect(records).To(HaveLen(1))
		g.Expect(records[0]).To(Equal(map[string]any{"fake": "result1"}))
	})

	t.Run("non-success statuses escalate before any record", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(666)
			fmt.Fprint(w, `oops`)
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		_, err := c.Stream(context.Background(), "/url", StreamOptions{})
		g.Expect(err).To(HaveOccurred())

		var apiErr *APIError
		g.Expect(errors.As(err, &apiErr)).To(BeTrue())
		g.Expect(apiErr.StatusCode).To(Equal(666))
	})

	t.Run("slow streams time out", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{
			Timeout: 100 * time.Millisecond,
		})
		g.Expect(err).ToNot(HaveOccurred())

		records := collectStream(t, stream)
		g.Expect(records).To(BeEmpty())

		var timeoutErr *TimeoutError
		g.Expect(errors.As(stream.Err(), &timeoutErr)).To(BeTrue())
	})

	t.Run("timeout covers records received so far", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			fmt.Fprint(w, "{\"fake\": \"result1\"}\n")
			flusher.Flush()
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		stream, err := c.Stream(context.Background(), "/url", StreamOptions{
			Timeout: 200 * time.Millisecond,
		})
		g.Expect(err).ToNot(HaveOccurred())

		records := collectStream(t, stream)
		g.Expect(records).To(HaveLen(1))

		var timeoutErr *TimeoutError
		g.Expect(errors.As(stream.Err(), &timeoutErr)).To(BeTrue())
	})
}

func TestStreamStopper(t *testing.T) {
	// The server produces the first record after 50ms and the second
	// after 200ms, then keeps the stream open for another 100ms
	// before EOF. The stop timing decides how many records are
	// yielded, independent of how long is left before EOF.
	newServer := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			w.WriteHeader(http.StatusOK)
			flusher.Flush()

			time.Sleep(50 * time.Millisecond)
			fmt.Fprint(w, "{\"fake\": \"result1\"}\n")
			flusher.Flush()

			time.Sleep(150 * time.Millisecond)
			fmt.Fprint(w, "{\"fake\": \"result2\"}\n")
			flusher.Flush()

			time.Sleep(100 * time.Millisecond)
		}))
	}

	tests := []struct {
		name     string
		delay    time.Duration
		expected int
	}{
		{name: "instant stop yields none", delay: 0, expected: 0},
		{name: "stop after the first record yields one", delay: 120 * time.Millisecond, expected: 1},
		{name: "late stop yields all", delay: 10 * time.Second, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			server := newServer()
			defer server.Close()

			stop := make(chan struct{})
			timer := time.AfterFunc(tt.delay, func() { close(stop) })
			defer timer.Stop()

			c := newTestClient(t, server.URL)
			stream, err := c.Stream(context.Background(), "/url", StreamOptions{Stop: stop})
			g.Expect(err).ToNot(HaveOccurred())

			records := collectStream(t, stream)

			// Cancellation ends the stream normally, not as an error.
			g.Expect(stream.Err()).ToNot(HaveOccurred())
			g.Expect(records).To(HaveLen(tt.expected))
		})
	}
}
