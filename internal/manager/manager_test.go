package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adred-codev/taghub/internal/snapshot"
	"github.com/adred-codev/taghub/internal/tag"
	"github.com/adred-codev/taghub/internal/topic"
)

func mkResult(tagId string, t time.Time) tag.QueryResult {
	return tag.QueryResult{
		TagId:   tagId,
		TagName: tagId,
		Value:   tag.NewBuilder().WithSampleTime(t).WithValue(tag.NumericVariant(1)).Build(),
	}
}

func newTestManager(opts Options) *Manager {
	return New(snapshot.New(), topic.New[int64](), opts)
}

func TestSubscribeDeliversCachedSnapshotBeforeLiveValue(t *testing.T) {
	m := newTestManager(Options{})
	defer m.Shutdown(time.Second)

	base := time.Now()
	m.ValueReceived(mkResult("A", base))

	ch, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer ch.Cancel()

	m.ValueReceived(mkResult("A", base.Add(time.Millisecond)))

	first := <-ch.Values()
	if !first.Value.UtcSampleTime.Equal(base.UTC()) {
		t.Fatalf("expected cached snapshot first, got sample time %v", first.Value.UtcSampleTime)
	}
	second := <-ch.Values()
	if !second.Value.UtcSampleTime.Equal(base.Add(time.Millisecond).UTC()) {
		t.Fatalf("expected live value second, got sample time %v", second.Value.UtcSampleTime)
	}
}

func TestFirstAndLastSubscriberCallbacksFireExactlyOnce(t *testing.T) {
	var added, removed int
	addedCh := make(chan struct{}, 10)
	removedCh := make(chan struct{}, 10)

	m := newTestManager(Options{
		OnTagsAdded: func(_ context.Context, tags []tag.Identifier) error {
			added += len(tags)
			addedCh <- struct{}{}
			return nil
		},
		OnTagsRemoved: func(_ context.Context, tags []tag.Identifier) error {
			removed += len(tags)
			removedCh <- struct{}{}
			return nil
		},
	})
	defer m.Shutdown(time.Second)

	ch1, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}
	<-addedCh

	ch2, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	select {
	case <-addedCh:
		t.Fatalf("OnTagsAdded should not fire again for a second subscriber to the same tag")
	case <-time.After(50 * time.Millisecond):
	}

	ch1.Cancel()
	m.Dispose(ch1.ID)
	// allow async disposal to settle
	time.Sleep(20 * time.Millisecond)

	select {
	case <-removedCh:
		t.Fatalf("OnTagsRemoved should not fire while another subscriber remains")
	case <-time.After(50 * time.Millisecond):
	}

	m.Dispose(ch2.ID)
	select {
	case <-removedCh:
	case <-time.After(time.Second):
		t.Fatalf("expected OnTagsRemoved to fire on the last subscriber's disposal")
	}

	if added != 1 {
		t.Fatalf("expected OnTagsAdded to cover exactly 1 tag total, got %d", added)
	}
	if removed != 1 {
		t.Fatalf("expected OnTagsRemoved to cover exactly 1 tag total, got %d", removed)
	}
}

func TestSubscribeRollsBackOnCallbackFailure(t *testing.T) {
	m := newTestManager(Options{
		OnTagsAdded: func(context.Context, []tag.Identifier) error {
			return errors.New("boom")
		},
	})
	defer m.Shutdown(time.Second)

	_, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err == nil {
		t.Fatalf("expected Subscribe to fail when OnTagsAdded errors")
	}

	if tags := m.GetSubscribedTags(); len(tags) != 0 {
		t.Fatalf("expected the rolled-back tag to be absent from the index, got %v", tags)
	}
}

func TestSubscribeFailsWhenCapacityExceeded(t *testing.T) {
	m := newTestManager(Options{MaxSubscriptions: 1})
	defer m.Shutdown(time.Second)

	if _, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil); err != nil {
		t.Fatalf("expected first Subscribe to succeed: %v", err)
	}
	if _, err := m.Subscribe(context.Background(), []string{"B"}, 0, nil); err == nil {
		t.Fatalf("expected second Subscribe to fail with capacity exceeded")
	}
}

func TestSubscribeFailsWhenResolverErrors(t *testing.T) {
	wantErr := errors.New("resolve failed")
	m := newTestManager(Options{
		Resolver: resolverFunc(func(context.Context, []string) ([]tag.Identifier, error) {
			return nil, wantErr
		}),
	})
	defer m.Shutdown(time.Second)

	if _, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil); err == nil {
		t.Fatalf("expected Subscribe to surface the resolver error")
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	m := newTestManager(Options{})
	defer m.Shutdown(time.Second)

	ch, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	m.Dispose(ch.ID)
	m.Dispose(ch.ID)
	m.Dispose(9999)
}

func TestValueReceivedWildcardFanOut(t *testing.T) {
	m := newTestManager(Options{
		IsTopicMatch: func(topic, value tag.Identifier) bool {
			return topic.Id == "ALL"
		},
	})
	defer m.Shutdown(time.Second)

	ch, err := m.Subscribe(context.Background(), []string{"ALL"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if !m.ValueReceived(mkResult("B", time.Now())) {
		t.Fatalf("expected wildcard subscriber to receive an unrelated tag's value")
	}

	select {
	case v := <-ch.Values():
		if v.TagId != "B" {
			t.Fatalf("expected to receive tag B via wildcard match, got %s", v.TagId)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a value on the wildcard subscriber's channel")
	}
}

func TestSubscribeAfterShutdownFails(t *testing.T) {
	m := newTestManager(Options{})
	m.Shutdown(time.Second)

	if _, err := m.Subscribe(context.Background(), []string{"A"}, 0, nil); err == nil {
		t.Fatalf("expected Subscribe after Shutdown to fail with AlreadyDisposed")
	}
}

type resolverFunc func(context.Context, []string) ([]tag.Identifier, error)

func (f resolverFunc) Resolve(ctx context.Context, names []string) ([]tag.Identifier, error) {
	return f(ctx, names)
}
