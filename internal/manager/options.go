package manager

import (
	"context"
	"time"

	"github.com/adred-codev/taghub/internal/resolver"
	"github.com/adred-codev/taghub/internal/tag"
)

// Action describes whether a TopicUpdate adds or removes interest in a
// tag on an already-open subscription.
type Action int

const (
	ActionSubscribe Action = iota
	ActionUnsubscribe
)

// TopicUpdate is one later mutation of a subscription's topic set,
// carried on the updates stream passed to Subscribe.
type TopicUpdate struct {
	Tag    string
	Action Action
}

// Request is the consumer-facing subscribe request.
type Request struct {
	Tags            []string
	PublishInterval time.Duration
}

// Logger is the minimal structured-logging surface the manager needs.
// Concrete loggers (e.g. the zerolog-backed one in internal/logging)
// satisfy this without the manager importing a logging framework
// directly — small interfaces in place of virtual hooks, applied to
// ambient collaborators too.
type Logger interface {
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything. Used when Options.Logger is nil.
var NopLogger Logger = nopLogger{}

// Options configures a Manager. All fields are optional. The snapshot
// cache and topic index are not options: the owning hub constructs them
// and passes them to New, since the push hub exclusively owns both.
type Options struct {
	// Resolver turns subscribe-request names into canonical
	// identifiers. Defaults to resolver.Identity, which short-circuits
	// wildcard support.
	Resolver resolver.Resolver

	// QueueCapacity bounds each subscriber's delivery queue. Defaults
	// to subscription.DefaultQueueCapacity.
	QueueCapacity int

	// MaxSubscriptions caps concurrent subscriptions; 0 means
	// unbounded. Exceeding it fails Subscribe with CapacityExceeded.
	MaxSubscriptions int

	// OnTagsAdded and OnTagsRemoved fire exactly once per 0->1 and 1->0
	// refcount transition, batched up to 100 tags per call.
	OnTagsAdded   func(ctx context.Context, tags []tag.Identifier) error
	OnTagsRemoved func(ctx context.Context, tags []tag.Identifier) error

	// IsTopicMatch enables wildcard/aliased fan-out: when set, a
	// published value also reaches subscriptions whose topic set
	// contains a pattern IsTopicMatch(topic, valueTag) accepts, on top
	// of the exact tag-id match.
	IsTopicMatch func(topic, valueTag tag.Identifier) bool

	Logger Logger
}

// batchSize bounds how many tags are added before the per-batch
// OnTagsAdded hook runs.
const batchSize = 100
