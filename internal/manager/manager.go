// Package manager implements the subscription manager: it owns the
// subscription set, runs the subscribe/unsubscribe lifecycle, and fans
// out accepted values to matching subscribers.
package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adred-codev/taghub/internal/apperr"
	"github.com/adred-codev/taghub/internal/resolver"
	"github.com/adred-codev/taghub/internal/snapshot"
	"github.com/adred-codev/taghub/internal/subscription"
	"github.com/adred-codev/taghub/internal/tag"
	"github.com/adred-codev/taghub/internal/topic"
)

// Health is the lightweight probe exposed by the manager.
type Health struct {
	SubscriberCount int
	TagCount        int
	CacheSize       int
}

// subEntry pairs a subscriber's delivery channel with the cancel
// function for the context merge performed at subscribe time, so
// disposal can release that small background goroutine instead of
// leaking it until manager shutdown.
type subEntry struct {
	ch          *subscription.Channel
	mergeCancel context.CancelFunc
}

// changeEvent is one batch of 0->1 or 1->0 refcount transitions queued
// to the manager's single serialization channel.
type changeEvent struct {
	tags  []tag.Identifier
	added bool
	done  chan error // nil for fire-and-forget (removal) events
}

// Manager is the subscription manager. It owns the subscription set;
// the snapshot cache and topic index are owned by the enclosing hub
// and passed in by reference.
type Manager struct {
	cache *snapshot.Cache
	index *topic.Index[int64]
	opts  Options

	nextID atomic.Int64

	subsMu sync.RWMutex
	subs   map[int64]*subEntry

	changes  *unboundedQueue[changeEvent]
	changeWG sync.WaitGroup

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	disposed       atomic.Bool
}

// New builds a Manager. cache and index are shared with the owning
// hub.
func New(cache *snapshot.Cache, index *topic.Index[int64], opts Options) *Manager {
	if opts.Resolver == nil {
		opts.Resolver = resolver.Identity
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = subscription.DefaultQueueCapacity
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cache:          cache,
		index:          index,
		opts:           opts,
		subs:           make(map[int64]*subEntry),
		changes:        newUnboundedQueue[changeEvent](),
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}

	m.changeWG.Add(1)
	go m.consumeChanges()

	return m
}

// consumeChanges is the single dedicated reader of the changes queue,
// serializing every first/last-subscriber callback invocation. Locks
// are never held across a callback invocation.
func (m *Manager) consumeChanges() {
	defer m.changeWG.Done()
	for {
		ev, ok := m.changes.Pop(m.shutdownCtx)
		if !ok {
			return
		}
		err := m.runHook(ev)
		if ev.done != nil {
			ev.done <- err
		} else if err != nil {
			m.opts.Logger.Error("subscription change callback failed", "added", ev.added, "err", err)
		}
	}
}

func (m *Manager) runHook(ev changeEvent) (err error) {
	var hook func(context.Context, []tag.Identifier) error
	if ev.added {
		hook = m.opts.OnTagsAdded
	} else {
		hook = m.opts.OnTagsRemoved
	}
	if hook == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = apperr.New(apperr.CallbackFailed, fmt.Errorf("panic: %v", r))
		}
	}()
	if callErr := hook(m.shutdownCtx, ev.tags); callErr != nil {
		return apperr.New(apperr.CallbackFailed, callErr)
	}
	return nil
}

// Subscribe creates a subscription for tags (resolved via
// opts.Resolver) with the given publish-interval coalescing, returning
// the channel the consumer reads from. updates, if non-nil, carries
// later topic mutations for the lifetime of the subscription.
func (m *Manager) Subscribe(ctx context.Context, tags []string, publishInterval time.Duration, updates <-chan TopicUpdate) (*subscription.Channel, error) {
	if ctx == nil {
		return nil, apperr.New(apperr.InvalidArgument, nil)
	}
	if m.disposed.Load() {
		return nil, apperr.New(apperr.AlreadyDisposed, nil)
	}

	resolved, err := m.opts.Resolver.Resolve(ctx, tags)
	if err != nil {
		return nil, apperr.New(apperr.ResolverFailed, err)
	}

	id := m.nextID.Add(1)
	merged, mergeCancel := mergeContexts(ctx, m.shutdownCtx)
	ch := subscription.New(id, merged, m.opts.QueueCapacity, publishInterval, dropWarner{m.opts.Logger})

	if err := m.register(id, ch, mergeCancel); err != nil {
		mergeCancel()
		return nil, err
	}

	go m.watchDisposal(id, ch)

	if err := m.addTopics(ctx, id, ch, resolved); err != nil {
		m.disposeSubscription(id, ch)
		return nil, err
	}

	if updates != nil {
		go m.watchUpdates(ctx, id, ch, updates)
	}

	return ch, nil
}

// register inserts the new subscription, enforcing MaxSubscriptions
// atomically with the insert so a burst of concurrent Subscribe calls
// cannot all pass a separate check-then-insert race.
func (m *Manager) register(id int64, ch *subscription.Channel, mergeCancel context.CancelFunc) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	if m.opts.MaxSubscriptions > 0 && len(m.subs) >= m.opts.MaxSubscriptions {
		return apperr.New(apperr.CapacityExceeded, nil)
	}
	m.subs[id] = &subEntry{ch: ch, mergeCancel: mergeCancel}
	return nil
}

// dropWarner adapts a Logger to subscription.DropWarner so a dropped
// initial-delivery snapshot gets logged with the tag that triggered it.
type dropWarner struct {
	log Logger
}

func (w dropWarner) WarnInitialDropped(topic tag.Identifier) {
	w.log.Warn("initial snapshot delivery dropped", "tag", topic.Id)
}

func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := make(chan struct{})
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

// addTopics adds resolved to ch's topic set in batches of up to 100,
// running the per-batch OnTagsAdded hook for whichever tags newly
// transitioned to having a subscriber, and awaiting its completion
// before returning. If a batch's hook fails, every tag of that batch
// that gained its first subscriber here is rolled back out of the index
// and out of ch's topic set — a failed OnTagsAdded decrements the
// refcount it introduced — and the error is returned (CallbackFailed,
// or Cancelled if ctx ends first). Tags of the batch that already had
// other subscribers, and tags of earlier batches, stay registered;
// Subscribe removes those when it disposes the failed subscription.
func (m *Manager) addTopics(ctx context.Context, id int64, ch *subscription.Channel, resolved []tag.Identifier) error {
	for start := 0; start < len(resolved); start += batchSize {
		end := start + batchSize
		if end > len(resolved) {
			end = len(resolved)
		}
		batch := resolved[start:end]

		var firstInBatch []tag.Identifier
		for _, t := range batch {
			t := t
			m.index.AddWithCallback(t, id, func(wasFirst bool) {
				if v, ok := m.cache.Get(t); ok {
					ch.Publish(v, true)
				}
				ch.AddTopics(t)
				if wasFirst {
					firstInBatch = append(firstInBatch, t)
				}
			})
		}

		if len(firstInBatch) == 0 {
			continue
		}

		done := make(chan error, 1)
		m.changes.Push(changeEvent{tags: firstInBatch, added: true, done: done})

		var hookErr error
		select {
		case hookErr = <-done:
		case <-ctx.Done():
			hookErr = apperr.New(apperr.Cancelled, ctx.Err())
		}

		if hookErr != nil {
			for _, t := range firstInBatch {
				m.index.Remove(t, id)
				ch.RemoveTopic(t)
			}
			return hookErr
		}
	}
	return nil
}

// watchUpdates applies later {Tag, Action} records to an open
// subscription until updates closes or the subscription ends.
func (m *Manager) watchUpdates(ctx context.Context, id int64, ch *subscription.Channel, updates <-chan TopicUpdate) {
	for {
		select {
		case <-ch.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			resolved, err := m.opts.Resolver.Resolve(ctx, []string{u.Tag})
			if err != nil || len(resolved) == 0 {
				continue
			}
			switch u.Action {
			case ActionSubscribe:
				_ = m.addTopics(ctx, id, ch, resolved)
			case ActionUnsubscribe:
				for _, t := range resolved {
					m.unsubscribeTopic(t, id)
					ch.RemoveTopic(t)
				}
			}
		}
	}
}

// unsubscribeTopic removes id's interest in t and, on a 1->0
// transition, queues the last-subscriber-removed hook without blocking
// the caller — only subscribe-time additions must await completion.
func (m *Manager) unsubscribeTopic(t tag.Identifier, id int64) {
	if last := m.index.Remove(t, id); last {
		m.changes.Push(changeEvent{tags: []tag.Identifier{t}, added: false})
	}
}

// watchDisposal runs for the lifetime of a subscription and performs
// cleanup the instant its context is cancelled, whether by the
// consumer, by Dispose, or by manager shutdown.
func (m *Manager) watchDisposal(id int64, ch *subscription.Channel) {
	<-ch.Done()
	m.disposeSubscription(id, ch)
}

// disposeSubscription is idempotent: it is safe to call from
// watchDisposal and from an explicit Dispose racing each other.
func (m *Manager) disposeSubscription(id int64, ch *subscription.Channel) {
	m.subsMu.Lock()
	entry, present := m.subs[id]
	delete(m.subs, id)
	m.subsMu.Unlock()
	if !present {
		return
	}
	entry.mergeCancel()

	for _, t := range ch.Topics() {
		m.unsubscribeTopic(t, id)
	}
	ch.Complete()
}

// Dispose cancels and cleans up the named subscription. Idempotent:
// disposing an unknown or already-disposed id is a no-op.
func (m *Manager) Dispose(id int64) {
	m.subsMu.RLock()
	entry, ok := m.subs[id]
	m.subsMu.RUnlock()
	if !ok {
		return
	}
	entry.ch.Cancel()
}

// ValueReceived is the producer ingress. It gates value through the
// snapshot cache, then fans it out to every matching subscriber,
// returning true iff the cache accepted the value and at least one
// subscriber received it.
func (m *Manager) ValueReceived(value tag.QueryResult) bool {
	if value.TagId == "" {
		return false
	}
	id := value.Identifier()

	if !m.cache.AddOrUpdate(id, value) {
		return false
	}

	delivered := false
	seen := make(map[int64]bool)

	for _, subID := range m.index.Subscribers(id) {
		if seen[subID] {
			continue
		}
		seen[subID] = true
		if ch := m.lookup(subID); ch != nil {
			ch.Publish(value, false)
			delivered = true
		}
	}

	if m.opts.IsTopicMatch != nil {
		m.subsMu.RLock()
		candidates := make([]*subscription.Channel, 0, len(m.subs))
		ids := make([]int64, 0, len(m.subs))
		for subID, entry := range m.subs {
			if seen[subID] {
				continue
			}
			candidates = append(candidates, entry.ch)
			ids = append(ids, subID)
		}
		m.subsMu.RUnlock()

		for i, ch := range candidates {
			matched := false
			for _, topicID := range ch.Topics() {
				if m.opts.IsTopicMatch(topicID, id) {
					matched = true
					break
				}
			}
			if matched {
				seen[ids[i]] = true
				ch.Publish(value, false)
				delivered = true
			}
		}
	}

	return delivered
}

func (m *Manager) lookup(id int64) *subscription.Channel {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	entry, ok := m.subs[id]
	if !ok {
		return nil
	}
	return entry.ch
}

// GetSubscribedTags returns every tag currently holding at least one
// subscriber.
func (m *Manager) GetSubscribedTags() []tag.Identifier {
	return m.index.Identifiers()
}

// HealthProbe reports subscriber count, unique-tag count, and cache
// size.
func (m *Manager) HealthProbe() Health {
	m.subsMu.RLock()
	subscribers := len(m.subs)
	m.subsMu.RUnlock()

	return Health{
		SubscriberCount: subscribers,
		TagCount:        len(m.index.Identifiers()),
		CacheSize:       m.cache.Len(),
	}
}

// Shutdown cancels every open subscription, drains the callback
// channel up to deadline, and marks the manager disposed so further
// Subscribe calls fail with AlreadyDisposed.
func (m *Manager) Shutdown(deadline time.Duration) {
	if !m.disposed.CompareAndSwap(false, true) {
		return
	}

	m.subsMu.RLock()
	all := make([]*subscription.Channel, 0, len(m.subs))
	for _, entry := range m.subs {
		all = append(all, entry.ch)
	}
	m.subsMu.RUnlock()

	for _, ch := range all {
		ch.Cancel()
	}

	m.shutdownCancel()

	done := make(chan struct{})
	go func() {
		m.changeWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(deadline):
	}
}
