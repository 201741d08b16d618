// Command taghub runs the tag-value snapshot push hub: it wires the
// subscription manager to an optional Kafka producer-ingress adapter
// and a polling driver, persists snapshots to a NATS JetStream KV
// bucket, and serves /healthz and /metrics.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/taghub/internal/config"
	"github.com/adred-codev/taghub/internal/hub"
	"github.com/adred-codev/taghub/internal/ingress/kafka"
	"github.com/adred-codev/taghub/internal/kvstore"
	"github.com/adred-codev/taghub/internal/logging"
	"github.com/adred-codev/taghub/internal/manager"
	"github.com/adred-codev/taghub/internal/poller"
	"github.com/adred-codev/taghub/internal/resolver"
	"github.com/adred-codev/taghub/internal/tag"
	"github.com/adred-codev/taghub/internal/telemetry"
)

func splitBrokers(csv string) []string {
	var out []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info().Str("environment", cfg.Environment).Msg("starting taghub")

	mgrLog := logging.ManagerLogger{Log: logger}
	metrics := telemetry.New()

	policy := hub.Keep
	if cfg.CacheEvictionPolicy == "evict" {
		policy = hub.Evict
	}

	var store *kvstore.Store
	store, err = kvstore.Connect(cfg.NatsURL, cfg.KVBucket)
	if err != nil {
		logger.Error().Err(err).Msg("nats kv store unavailable, continuing without snapshot persistence")
		store = nil
	} else if cfg.KVScopePrefix != "" {
		store = store.CreateScopedStore(cfg.KVScopePrefix)
	}

	var h *hub.Hub
	var p *poller.Poller
	h = hub.New(hub.Options{
		Policy:             policy,
		MaxSubscriptions:   cfg.MaxSubscriptions,
		SubscriberQueueCap: cfg.SubscriberQueueCap,
		Resolver:           resolver.Identity,
		Logger:             mgrLog,
		OnTagSubscriptionsAdded: func(ctx context.Context, tags []tag.Identifier) error {
			if store != nil {
				if err := store.WriteSubscribedTags(ctx, h.Manager.GetSubscribedTags()); err != nil {
					logger.Warn().Err(err).Msg("failed to persist subscribed tag set")
				}
			}
			if p != nil {
				p.PollTags(ctx, tags)
			}
			return nil
		},
	})

	if store != nil {
		ctx := context.Background()
		values, err := store.LoadAllValues(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to warm-load persisted snapshots")
		}
		for _, v := range values {
			h.Cache.AddOrUpdate(v.Identifier(), v)
		}
		logger.Info().Int("count", len(values)).Msg("warm-loaded persisted snapshots")
	}

	p = poller.New(noUpstream{}, persistingSink{mgr: h.Manager, store: store, log: logger}, h.Manager.GetSubscribedTags, poller.Options{
		Interval:  cfg.PollInterval,
		PageSize:  cfg.PollPageSize,
		RateLimit: cfg.PollRateLimit,
		Logger:    mgrLog,
		Errors:    metrics,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go p.Run(rootCtx)

	brokers := splitBrokers(cfg.KafkaBrokers)
	var consumer *kafka.Consumer
	if len(brokers) > 0 {
		consumer, err = kafka.NewConsumer(kafka.Config{
			Brokers:       brokers,
			ConsumerGroup: cfg.ConsumerGroup,
			Topic:         cfg.KafkaTopic,
			Sink:          persistingSink{mgr: h.Manager, store: store, log: logger},
			Logger:        mgrLog,
		})
		if err != nil {
			logger.Error().Err(err).Msg("kafka ingress unavailable, continuing on polling alone")
		} else {
			consumer.Start(rootCtx)
			logger.Info().Str("topic", cfg.KafkaTopic).Msg("kafka ingress started")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/healthz", telemetry.HealthHandler(h.Manager))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		refreshGauges(rootCtx, h, metrics)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if consumer != nil {
		consumer.Stop()
	}
	h.Shutdown(5 * time.Second)
}

// refreshGauges periodically snapshots the manager's health probe into
// the gauge metrics until ctx is cancelled.
func refreshGauges(ctx context.Context, h *hub.Hub, m *telemetry.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshGauges(h.Manager.HealthProbe())
		}
	}
}

// noUpstream is the poller's upstream in this binary: no poll-only
// source of truth is configured, so every read, on a tick or out of
// band, returns nothing and values arrive through Kafka ingress alone.
type noUpstream struct{}

func (noUpstream) ReadSnapshotTagValues(_ context.Context, _ []tag.Identifier) ([]tag.QueryResult, error) {
	return nil, nil
}

// persistingSink forwards a received value to the manager and, best
// effort, to the KV snapshot store.
type persistingSink struct {
	mgr   *manager.Manager
	store *kvstore.Store
	log   zerolog.Logger
}

func (s persistingSink) ValueReceived(v tag.QueryResult) bool {
	accepted := s.mgr.ValueReceived(v)
	if accepted && s.store != nil {
		if err := s.store.WriteValue(context.Background(), v); err != nil {
			s.log.Warn().Err(err).Str("tag", v.TagId).Msg("failed to persist snapshot")
		}
	}
	return accepted
}
