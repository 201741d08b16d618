// Package poller implements the polling driver: it periodically reads
// every currently-subscribed tag from an upstream source, in pages,
// and feeds each result into the manager's ValueReceived ingress. Its
// PollTags performs an immediate out-of-band read, which the hub's
// first-subscriber hook calls for a batch of newly subscribed tags, so
// a new subscription doesn't wait for the next scheduled tick to get
// fresh data.
package poller

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/adred-codev/taghub/internal/tag"
)

// Upstream is the source of truth the poller reads from.
type Upstream interface {
	ReadSnapshotTagValues(ctx context.Context, tags []tag.Identifier) ([]tag.QueryResult, error)
}

// ValueSink receives each polled result. *manager.Manager satisfies
// this via its ValueReceived method.
type ValueSink interface {
	ValueReceived(value tag.QueryResult) bool
}

// ErrorObserver is notified of upstream read failures; the poller
// itself only logs and continues. Nil-safe.
type ErrorObserver interface {
	ObservePollError()
}

// Options configures a Poller.
type Options struct {
	Interval  time.Duration
	PageSize  int
	RateLimit int // reads per second admitted to Upstream

	Logger interface {
		Error(msg string, kv ...any)
	}
	Errors ErrorObserver
}

const defaultPageSize = 100

// Poller runs the periodic snapshot-read loop.
type Poller struct {
	upstream Upstream
	sink     ValueSink
	tagSrc   func() []tag.Identifier

	interval time.Duration
	pageSize int
	limiter  *rate.Limiter

	logger interface {
		Error(msg string, kv ...any)
	}
	errs ErrorObserver
}

// New builds a Poller. tagSrc supplies the current set of subscribed
// tags on every tick (typically Manager.GetSubscribedTags).
func New(upstream Upstream, sink ValueSink, tagSrc func() []tag.Identifier, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = opts.PageSize
	}
	return &Poller{
		upstream: upstream,
		sink:     sink,
		tagSrc:   tagSrc,
		interval: opts.Interval,
		pageSize: opts.PageSize,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit),
		logger:   opts.Logger,
		errs:     opts.Errors,
	}
}

// Run blocks, polling on Interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, p.tagSrc())
		}
	}
}

// PollTags performs one out-of-band read of exactly tags, bypassing
// the ticker. Used to backfill a newly-subscribed batch immediately.
func (p *Poller) PollTags(ctx context.Context, tags []tag.Identifier) {
	p.pollOnce(ctx, tags)
}

func (p *Poller) pollOnce(ctx context.Context, tags []tag.Identifier) {
	for start := 0; start < len(tags); start += p.pageSize {
		end := start + p.pageSize
		if end > len(tags) {
			end = len(tags)
		}
		page := tags[start:end]

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		results, err := p.upstream.ReadSnapshotTagValues(ctx, page)
		if err != nil {
			if p.errs != nil {
				p.errs.ObservePollError()
			}
			if p.logger != nil {
				p.logger.Error("upstream read failed", "page_size", len(page), "err", err)
			}
			continue
		}

		for _, r := range results {
			p.sink.ValueReceived(r)
		}
	}
}
