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

// Package memories keeps per-resource execution state alive across
// the many watch events a resource produces during its lifetime.
//
// The registry maps a resource's identity (its metadata.uid) to a
// single memory slot. The slot is created lazily on first recall,
// reused by reference on every subsequent recall, and destroyed only
// by an explicit forget, typically when the resource is deleted
// from the cluster.
package memories

import (
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
)

// Duplicable is implemented by memo templates. Duplicate must return
// a shallow copy with value semantics of the implementer's choosing;
// the registry calls it exactly once per slot creation and never on
// cache hits.
type Duplicable interface {
	Duplicate() Duplicable
}

// Memo is the default memo implementation: a free-form map of
// handler-owned values.
type Memo map[string]any

// Duplicate returns a shallow copy: keys are copied, values are
// shared with the original.
func (m Memo) Duplicate() Duplicable {
	out := make(Memo, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}

// ResourceMemory is the per-resource memory slot. Its pointer
// identity is stable: every Recall between the creating call and a
// Forget returns the same *ResourceMemory, never a copy, so handlers
// may keep references to it across events.
//
// Beyond the memo, the slot carries bookkeeping fields owned by the
// handler-dispatch layer; the registry itself never reads them.
type ResourceMemory struct {
	// Memo is the user-owned state seeded from the memo template at
	// creation. Never nil: without a template it defaults to an
	// empty Memo.
	Memo Duplicable

	// NoticedByListing records that the resource was first seen via
	// an initial listing rather than a change event.
	NoticedByListing bool

	// FullyHandledOnce records that all handlers have succeeded for
	// this resource at least once.
	FullyHandledOnce bool
}

// ResourceMemories is the registry of memory slots, keyed by the
// resource UID. Safe for concurrent use: racing Recall calls for the
// same resource converge on a single slot, and operations on
// unrelated resources never block each other for more than a
// constant-time map access.
type ResourceMemories struct {
	mu    sync.RWMutex
	items map[types.UID]*ResourceMemory
}

// NewResourceMemories creates an empty registry.
func NewResourceMemories() *ResourceMemories {
	return &ResourceMemories{
		items: make(map[types.UID]*ResourceMemory),
	}
}

// Recall returns the memory slot for the resource in body, creating
// it if absent. On creation the slot's memo is a shallow copy of
// template, or an empty Memo when template is nil.
func (r *ResourceMemories) Recall(body *unstructured.Unstructured, template Duplicable) (*ResourceMemory, error) {
	uid, err := identityOf(body)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	memory, ok := r.items[uid]
	r.mu.RUnlock()
	if ok {
		return memory, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another Recall may have created the slot between the read and
	// write locks; the first creation wins and the template is not
	// duplicated again.
	if memory, ok := r.items[uid]; ok {
		return memory, nil
	}

	memo := Duplicable(Memo{})
	if template != nil {
		memo = template.Duplicate()
	}
	memory = &ResourceMemory{Memo: memo}
	r.items[uid] = memory
	return memory, nil
}

// Forget removes the memory slot for the resource in body. Absent
// slots are a no-op: forgetting is idempotent. A later Recall for
// the same resource creates a fresh slot with a freshly duplicated
// memo.
func (r *ResourceMemories) Forget(body *unstructured.Unstructured) error {
	uid, err := identityOf(body)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, uid)
	return nil
}

// Len returns the number of live memory slots.
func (r *ResourceMemories) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// identityOf extracts the registry key from a resource body. Two
// bodies with the same UID refer to the same logical resource even
// when every other field differs between events.
func identityOf(body *unstructured.Unstructured) (types.UID, error) {
	if body == nil {
		return "", fmt.Errorf("memories: resource body is nil")
	}
	uid := body.GetUID()
	if uid == "" {
		return "", fmt.Errorf("memories: resource %q has no metadata.uid", body.GetName())
	}
	return uid, nil
}
