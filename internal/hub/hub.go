// Package hub wires the snapshot cache, topic index, and subscription
// manager together and applies the cache eviction policy on
// last-subscriber-removed.
package hub

import (
	"context"
	"time"

	"github.com/adred-codev/taghub/internal/manager"
	"github.com/adred-codev/taghub/internal/resolver"
	"github.com/adred-codev/taghub/internal/snapshot"
	"github.com/adred-codev/taghub/internal/tag"
	"github.com/adred-codev/taghub/internal/topic"
)

// EvictionPolicy governs what happens to a tag's cached snapshot once
// its last subscriber unsubscribes.
type EvictionPolicy int

const (
	// Keep leaves the cached snapshot in place so a later re-subscribe
	// gets an immediate initial delivery without waiting on a fresh
	// upstream read.
	Keep EvictionPolicy = iota
	// Evict removes the cached snapshot as soon as no subscriber is
	// interested in the tag.
	Evict
)

// Options configures a Hub.
type Options struct {
	Policy EvictionPolicy

	// ShardCount tunes the snapshot cache's shard count; 0 uses the
	// default.
	ShardCount int

	MaxSubscriptions   int
	SubscriberQueueCap int

	Resolver     resolver.Resolver
	IsTopicMatch func(topic, value tag.Identifier) bool
	Logger       manager.Logger

	// OnTagSubscriptionsAdded/Removed extend the manager's own hooks:
	// they fire after the manager's bookkeeping, so a caller supplying
	// both an upstream subscribe/unsubscribe notifier and a cache
	// eviction policy sees them run in the same batched callback.
	OnTagSubscriptionsAdded   func(ctx context.Context, tags []tag.Identifier) error
	OnTagSubscriptionsRemoved func(ctx context.Context, tags []tag.Identifier) error
}

// Hub is the push engine's top-level object: snapshot cache, topic
// index, and subscription manager, composed with an eviction policy.
type Hub struct {
	Cache   *snapshot.Cache
	Index   *topic.Index[int64]
	Manager *manager.Manager

	policy EvictionPolicy
}

// New builds a Hub. The cache and index are constructed here and
// owned exclusively by the returned Hub and its Manager.
func New(opts Options) *Hub {
	cache := snapshot.New()
	if opts.ShardCount > 0 {
		cache = snapshot.NewSized(opts.ShardCount)
	}
	index := topic.New[int64]()

	h := &Hub{Cache: cache, Index: index, policy: opts.Policy}

	mgrOpts := manager.Options{
		Resolver:         opts.Resolver,
		MaxSubscriptions: opts.MaxSubscriptions,
		QueueCapacity:    opts.SubscriberQueueCap,
		IsTopicMatch:     opts.IsTopicMatch,
		Logger:           opts.Logger,
	}
	mgrOpts.OnTagsAdded = func(ctx context.Context, tags []tag.Identifier) error {
		if opts.OnTagSubscriptionsAdded != nil {
			return opts.OnTagSubscriptionsAdded(ctx, tags)
		}
		return nil
	}
	mgrOpts.OnTagsRemoved = func(ctx context.Context, tags []tag.Identifier) error {
		if opts.OnTagSubscriptionsRemoved != nil {
			if err := opts.OnTagSubscriptionsRemoved(ctx, tags); err != nil {
				return err
			}
		}
		if h.policy == Evict {
			has := h.Index.HasSubscribers()
			h.Cache.RemoveStale(has)
		}
		return nil
	}

	h.Manager = manager.New(cache, index, mgrOpts)
	return h
}

// Shutdown cancels every open subscription and marks the hub disposed.
func (h *Hub) Shutdown(deadline time.Duration) {
	h.Manager.Shutdown(deadline)
}
