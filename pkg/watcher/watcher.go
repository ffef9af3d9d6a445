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

// Package watcher drives the controller loop: it consumes change
// streams from the cluster API, pairs every event with the
// resource's memory slot, and invokes the handler once per event.
//
// Retry policy lives here, not in the transport: when a stream
// fails, the watcher re-opens it with exponential backoff while the
// per-resource memories survive the reconnect.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/opkit/pkg/client"
	"github.com/stefanprodan/opkit/pkg/memories"
)

// EventType classifies a change event from a watch stream.
type EventType string

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
	EventBookmark EventType = "BOOKMARK"
	EventError    EventType = "ERROR"
)

// Event is one decoded change event: the event type and the resource
// snapshot it carries.
type Event struct {
	Type   EventType
	Object *unstructured.Unstructured
}

// Handler processes one event against the resource's memory slot.
// A non-nil error is logged and does not stop the watch loop.
type Handler func(ctx context.Context, event Event, memory *memories.ResourceMemory) error

// Config holds the settings for creating a Watcher.
type Config struct {
	// Client issues the streaming reads. Required.
	Client *client.Client

	// Handler is invoked once per received event. Required.
	Handler Handler

	// Memories is the per-resource state registry. If nil, the
	// watcher creates its own.
	Memories *memories.ResourceMemories

	// MemoTemplate seeds the memo of newly created memory slots.
	// Optional.
	MemoTemplate memories.Duplicable

	// StreamTimeout bounds each stream attempt. Zero means the
	// stream stays open until the server closes it.
	StreamTimeout time.Duration

	// Logger is used for structured logging. If unset, logging
	// is discarded.
	Logger logr.Logger
}

// Watcher runs one watch loop per configured path.
type Watcher struct {
	client   *client.Client
	handler  Handler
	memories *memories.ResourceMemories
	template memories.Duplicable
	timeout  time.Duration
	logger   logr.Logger
	paths    []string
}

// New creates a Watcher for the given stream paths.
func New(config Config, paths ...string) (*Watcher, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("watcher: Client is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("watcher: Handler is required")
	}

	mem := config.Memories
	if mem == nil {
		mem = memories.NewResourceMemories()
	}

	logger := config.Logger
	if logger.IsZero() {
		logger = logr.Discard()
	}

	return &Watcher{
		client:   config.Client,
		handler:  config.Handler,
		memories: mem,
		template: config.MemoTemplate,
		timeout:  config.StreamTimeout,
		logger:   logger,
		paths:    paths,
	}, nil
}

// Memories returns the registry backing this watcher.
func (w *Watcher) Memories() *memories.ResourceMemories {
	return w.memories
}

// Run watches all configured paths until ctx is cancelled. Each path
// gets its own loop; events from one stream arrive in receipt order,
// with no ordering across streams.
func (w *Watcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, path := range w.paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			w.watch(ctx, path)
		}(path)
	}
	wg.Wait()
}

// watch keeps one stream path alive: consume until the stream ends,
// then reconnect. Failures back off exponentially; a stream that
// ended cleanly resets the backoff.
func (w *Watcher) watch(ctx context.Context, path string) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0

	for {
		err := w.consume(ctx, path)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			policy.Reset()
			continue
		}

		delay := policy.NextBackOff()
		w.logger.Error(err, "watch stream failed, retrying",
			"path", path, "retry_in", delay.String())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// consume runs a single stream lifetime. Cancellation of ctx ends
// the stream cooperatively: records already received are still
// dispatched before the loop stops.
func (w *Watcher) consume(ctx context.Context, path string) error {
	stream, err := w.client.Stream(ctx, path, client.StreamOptions{
		Timeout: w.timeout,
		Stop:    ctx.Done(),
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		event := eventFromRecord(stream.Record())
		w.dispatch(ctx, path, event)
	}
	return stream.Err()
}

// dispatch pairs one event with its memory slot and runs the
// handler. Deleted resources are forgotten after handling, so a
// resource recreated under a new UID starts from fresh memory.
func (w *Watcher) dispatch(ctx context.Context, path string, event Event) {
	if event.Object == nil {
		w.logger.V(1).Info("skipping event without object", "path", path, "type", event.Type)
		return
	}

	memory, err := w.memories.Recall(event.Object, w.template)
	if err != nil {
		w.logger.Error(err, "cannot recall resource memory",
			"path", path, "type", event.Type, "name", event.Object.GetName())
		return
	}

	if err := w.handler(ctx, event, memory); err != nil {
		w.logger.Error(err, "handler failed",
			"path", path, "type", event.Type,
			"name", event.Object.GetName(), "uid", event.Object.GetUID())
	}

	if event.Type == EventDeleted {
		if err := w.memories.Forget(event.Object); err != nil {
			w.logger.Error(err, "cannot forget resource memory",
				"path", path, "uid", event.Object.GetUID())
		}
	}
}

// eventFromRecord maps one streamed record to an Event. A record can
// be any JSON value at the transport level; only objects following
// the cluster watch convention {"type": ..., "object": ...} carry a
// resource snapshot.
func eventFromRecord(record any) Event {
	event := Event{}
	fields, ok := record.(map[string]any)
	if !ok {
		return event
	}
	if eventType, ok := fields["type"].(string); ok {
		event.Type = EventType(eventType)
	}
	if object, ok := fields["object"].(map[string]any); ok {
		event.Object = &unstructured.Unstructured{Object: object}
	}
	return event
}
