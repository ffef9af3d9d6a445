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
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// StreamOptions carries the optional parts of a streaming read.
type StreamOptions struct {
	// Payload is JSON-encoded into the request body when non-nil.
	Payload any

	// Headers are added to the request.
	Headers http.Header

	// Timeout bounds the whole stream: connection plus every
	// subsequent wait for bytes share the same deadline.
	Timeout time.Duration

	// Stop is a one-shot cooperative cancellation signal (a closed
	// channel counts as resolved). When it fires, the stream ends
	// normally after yielding every record whose line was already
	// fully received; it never waits for new bytes. A nil channel
	// disables cancellation.
	Stop <-chan struct{}
}

// Stream is a lazy reader over a newline-delimited JSON response
// body. Records are yielded strictly in receipt order, one fully
// terminated line at a time; trailing partial lines are never
// yielded.
//
// Iterate in the bufio.Scanner style:
//
//	stream, err := c.Stream(ctx, "/api/v1/pods?watch=true", client.StreamOptions{})
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//	    record := stream.Record()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
//
// A Stream is not safe for concurrent use by multiple goroutines.
type Stream struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	timeout time.Duration

	chunks  chan streamChunk
	stop    <-chan struct{}
	timer   *time.Timer
	timerC  <-chan time.Time
	stopped chan struct{}

	buf      []byte
	record   any
	err      error
	done     bool
	eof      bool
	stopping bool

	closeOnce sync.Once
	closeErr  error
}

type streamChunk struct {
	data []byte
	err  error
}

// Stream opens a streaming GET against the given URL. Watching is a
// read-only operation: mutating verbs never stream, so GET is the
// only verb supported here. URL resolution and non-2xx escalation
// follow the same rules as Do.
func (c *Client) Stream(ctx context.Context, rawURL string, opts StreamOptions) (*Stream, error) {
	started := time.Now()

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		// The derived deadline covers the connection and every byte
		// read for the lifetime of the stream. It is released by
		// Close, not when this function returns.
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	request, err := c.newRequest(ctx, http.MethodGet, rawURL, RequestOptions{
		Payload: opts.Payload,
		Headers: opts.Headers,
	})
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		if isTimeout(err) {
			return nil, &TimeoutError{Timeout: opts.Timeout}
		}
		return nil, fmt.Errorf("client: GET %s: %w", rawURL, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(response.Body)
		response.Body.Close()
		if cancel != nil {
			cancel()
		}
		return nil, &APIError{StatusCode: response.StatusCode, Body: body}
	}

	stream := &Stream{
		body:    response.Body,
		cancel:  cancel,
		timeout: opts.Timeout,
		chunks:  make(chan streamChunk),
		stop:    opts.Stop,
		stopped: make(chan struct{}),
	}

	if opts.Timeout > 0 {
		remaining := opts.Timeout - time.Since(started)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}
		stream.timer = time.NewTimer(remaining)
		stream.timerC = stream.timer.C
	}

	go stream.read()

	c.logger.V(1).Info("stream opened", "url", rawURL)

	return stream, nil
}

// read pumps the response body into the chunks channel. The channel
// is unbuffered: the next read is only issued once the consumer has
// taken the previous chunk, keeping the stream pull-driven.
func (s *Stream) read() {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.chunks <- streamChunk{data: data}:
			case <-s.stopped:
				return
			}
		}
		if err != nil {
			select {
			case s.chunks <- streamChunk{err: err}:
			case <-s.stopped:
			}
			return
		}
	}
}

// Next advances to the next record. It returns false when the stream
// ends, for whatever reason; Err tells a normal end (nil) apart from
// a failure.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		// Everything fully received is yielded before suspending:
		// a record whose line is already complete can never be lost
		// to a later cancellation or timeout.
		if line, ok := s.nextLine(); ok {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var record any
			if err := json.Unmarshal(line, &record); err != nil {
				s.fail(&DecodeError{Err: err})
				return false
			}
			s.record = record
			return true
		}

		if s.stopping || s.eof {
			s.finish()
			return false
		}
		if s.err != nil {
			s.done = true
			s.Close()
			return false
		}

		// A chunk that is already deliverable wins over a resolved
		// stop signal, so the select below cannot randomly drop
		// bytes that arrived before cancellation.
		select {
		case chunk, ok := <-s.chunks:
			s.consume(chunk, ok)
			continue
		default:
		}

		select {
		case chunk, ok := <-s.chunks:
			s.consume(chunk, ok)
		case <-s.stop:
			s.stopping = true
			s.drain()
		case <-s.timerC:
			s.fail(&TimeoutError{Timeout: s.timeout})
			return false
		}
	}
}

// Record returns the record decoded by the last successful Next: one
// JSON value per line, of whatever shape the server sent.
func (s *Stream) Record() any {
	return s.record
}

// Err returns the terminal error of the stream. It is nil after a
// normal end: EOF, or a resolved cancellation signal.
func (s *Stream) Err() error {
	return s.err
}

// consume folds one chunk into the line buffer, or records the
// reader's terminal condition.
func (s *Stream) consume(chunk streamChunk, ok bool) {
	if !ok {
		s.eof = true
		return
	}
	if chunk.err != nil {
		switch {
		case errors.Is(chunk.err, io.EOF):
			s.eof = true
		case isTimeout(chunk.err):
			s.err = &TimeoutError{Timeout: s.timeout}
		default:
			s.err = fmt.Errorf("client: reading stream: %w", chunk.err)
		}
		return
	}
	s.buf = append(s.buf, chunk.data...)
}

// drain collects chunks that were received before the cancellation
// signal was observed, without ever blocking for new bytes.
func (s *Stream) drain() {
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok || chunk.err != nil {
				s.eof = true
				return
			}
			s.buf = append(s.buf, chunk.data...)
		default:
			return
		}
	}
}

// nextLine pops the oldest complete line off the buffer. Bytes after
// the last terminator stay buffered as a partial line.
func (s *Stream) nextLine() ([]byte, bool) {
	idx := bytes.IndexByte(s.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	line := s.buf[:idx]
	s.buf = s.buf[idx+1:]
	return line, true
}

func (s *Stream) finish() {
	s.done = true
	s.Close()
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	s.Close()
}

// Close releases the connection and stops the reader goroutine.
// It is idempotent and safe to call at any point of iteration.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopped)
		s.closeErr = s.body.Close()
		if s.timer != nil {
			s.timer.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
	return s.closeErr
}
