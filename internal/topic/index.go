// Package topic implements the tag-to-subscriber multimap and its
// reference count. Subscriber set and refcount for a tag live in one
// record under one mutex — splitting them across two maps under two
// locks invites a TOCTOU window between "Add" and "is this the
// transition".
package topic

import (
	"sync"

	"github.com/adred-codev/taghub/internal/tag"
)

type record[S comparable] struct {
	id   tag.Identifier
	subs map[S]struct{}
}

// Index is the tag → subscribers map plus its refcount, generalized
// over the subscriber-handle type S (typically a subscription id).
type Index[S comparable] struct {
	mu   sync.Mutex
	tags map[string]*record[S]
}

func New[S comparable]() *Index[S] {
	return &Index[S]{tags: make(map[string]*record[S])}
}

// Add registers sub under id's tag. Returns true iff this Add
// transitioned the tag's refcount from 0 to 1 — the signal to fire the
// first-subscriber-added callback.
func (ix *Index[S]) Add(id tag.Identifier, sub S) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := id.Key()
	r, ok := ix.tags[key]
	if !ok {
		r = &record[S]{id: id, subs: make(map[S]struct{})}
		ix.tags[key] = r
	}
	wasEmpty := len(r.subs) == 0
	r.subs[sub] = struct{}{}
	return wasEmpty
}

// AddWithCallback registers sub under id's tag and, while still holding
// the index's single mutex, invokes fn with whether this Add
// transitioned the tag's refcount from 0 to 1. Running fn under the
// lock is what gives the manager its "initial delivery happens-before
// any live value" guarantee: ValueReceived's fan-out must take the
// same lock to read the subscriber set, so it cannot observe sub as a
// subscriber until fn has returned. fn must be fast and must not
// itself call back into this Index (no callback invocations or channel
// writes other than the bounded initial-delivery publish it is meant
// for — never hold this lock across an arbitrary callback).
func (ix *Index[S]) AddWithCallback(id tag.Identifier, sub S, fn func(wasFirst bool)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := id.Key()
	r, ok := ix.tags[key]
	if !ok {
		r = &record[S]{id: id, subs: make(map[S]struct{})}
		ix.tags[key] = r
	}
	wasFirst := len(r.subs) == 0
	r.subs[sub] = struct{}{}
	if fn != nil {
		fn(wasFirst)
	}
}

// Remove unregisters sub from id's tag. Returns true iff this Remove
// transitioned the tag's refcount from 1 to 0 — the signal to fire the
// last-subscriber-removed callback. The per-tag record is deleted once
// empty, so "entry exists iff refcount > 0" holds structurally.
func (ix *Index[S]) Remove(id tag.Identifier, sub S) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := id.Key()
	r, ok := ix.tags[key]
	if !ok {
		return false
	}
	if _, present := r.subs[sub]; !present {
		return false
	}
	delete(r.subs, sub)
	if len(r.subs) == 0 {
		delete(ix.tags, key)
		return true
	}
	return false
}

// Subscribers returns a snapshot of the subscriber handles currently
// registered under id's tag.
func (ix *Index[S]) Subscribers(id tag.Identifier) []S {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	r, ok := ix.tags[id.Key()]
	if !ok {
		return nil
	}
	out := make([]S, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

// RefCount returns the current subscriber count for id's tag.
func (ix *Index[S]) RefCount(id tag.Identifier) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	r, ok := ix.tags[id.Key()]
	if !ok {
		return 0
	}
	return len(r.subs)
}

// Identifiers returns every tag identifier currently holding at least
// one subscriber. Used by GetSubscribedTags and the polling driver.
func (ix *Index[S]) Identifiers() []tag.Identifier {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make([]tag.Identifier, 0, len(ix.tags))
	for _, r := range ix.tags {
		out = append(out, r.id)
	}
	return out
}

// HasSubscribers reports, keyed by Identifier.Key(), which tags
// currently have at least one subscriber. Since an index entry only
// exists while refcount > 0, every key here maps to true — it exists
// for RemoveStale callers that need a lookup keyed the same way the
// snapshot cache keys its entries, see snapshot.Cache.RemoveStale.
func (ix *Index[S]) HasSubscribers() map[string]bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make(map[string]bool, len(ix.tags))
	for k := range ix.tags {
		out[k] = true
	}
	return out
}
