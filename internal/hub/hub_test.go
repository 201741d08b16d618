package hub

import (
	"context"
	"testing"
	"time"

	"github.com/adred-codev/taghub/internal/tag"
)

func mkResult(id string, t time.Time) tag.QueryResult {
	return tag.QueryResult{
		TagId:   id,
		TagName: id,
		Value:   tag.NewBuilder().WithSampleTime(t).WithValue(tag.NumericVariant(1)).Build(),
	}
}

func TestKeepPolicyRetainsSnapshotAfterLastUnsubscribe(t *testing.T) {
	h := New(Options{Policy: Keep})
	defer h.Shutdown(time.Second)

	h.Manager.ValueReceived(mkResult("A", time.Now()))
	ch, err := h.Manager.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	<-ch.Values() // drain the initial delivery
	h.Manager.Dispose(ch.ID)
	time.Sleep(20 * time.Millisecond)

	if _, ok := h.Cache.Get(tag.Identifier{Id: "A"}); !ok {
		t.Fatalf("expected keep policy to retain the cached snapshot")
	}
}

func TestEvictPolicyRemovesSnapshotAfterLastUnsubscribe(t *testing.T) {
	h := New(Options{Policy: Evict})
	defer h.Shutdown(time.Second)

	h.Manager.ValueReceived(mkResult("A", time.Now()))
	ch, err := h.Manager.Subscribe(context.Background(), []string{"A"}, 0, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	<-ch.Values()
	h.Manager.Dispose(ch.ID)
	time.Sleep(20 * time.Millisecond)

	if _, ok := h.Cache.Get(tag.Identifier{Id: "A"}); ok {
		t.Fatalf("expected evict policy to remove the cached snapshot")
	}
}
