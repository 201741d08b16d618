// Package kvstore persists tag snapshots to a NATS JetStream key-value
// bucket so a restarted hub can warm its cache from the last known
// values instead of waiting on a full upstream re-poll.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/adred-codev/taghub/internal/tag"
)

const (
	tagsKey    = "tags"
	valueKeyPrefix = "value:"
)

func valueKey(tagId string) string {
	return valueKeyPrefix + tagId
}

// Store is the KV snapshot store. Writes are fire-and-forget: a
// failure to persist never blocks or fails the originating publish,
// it is only logged by the caller.
type Store struct {
	kv     nats.KeyValue
	prefix string
}

// Connect dials url and opens (creating if absent) the named JetStream
// KV bucket.
func Connect(url, bucket string) (*Store, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create kv bucket %s: %w", bucket, err)
		}
	}

	return &Store{kv: kv}, nil
}

// CreateScopedStore returns a Store that namespaces every key under
// prefix, so multiple hub instances can share one bucket without
// colliding.
func (s *Store) CreateScopedStore(prefix string) *Store {
	return &Store{kv: s.kv, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// WriteJson marshals v and writes it under key. Fire-and-forget: the
// caller is expected to ignore the error or merely log it.
func (s *Store) WriteJson(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = s.kv.Put(s.key(key), data)
	return err
}

// ReadJson reads key into out. Returns false, nil if the key does not
// exist.
func (s *Store) ReadJson(ctx context.Context, key string, out any) (bool, error) {
	entry, err := s.kv.Get(s.key(key))
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(entry.Value(), out); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	return true, nil
}

// Delete removes key. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(s.key(key))
	if err == nats.ErrKeyNotFound {
		return nil
	}
	return err
}

// WriteValue persists the latest snapshot for a tag under its
// value:{tagId} key.
func (s *Store) WriteValue(ctx context.Context, result tag.QueryResult) error {
	return s.WriteJson(ctx, valueKey(result.TagId), result)
}

// ReadValue loads the persisted snapshot for id, if any.
func (s *Store) ReadValue(ctx context.Context, id tag.Identifier) (tag.QueryResult, bool, error) {
	var out tag.QueryResult
	ok, err := s.ReadJson(ctx, valueKey(id.Id), &out)
	return out, ok, err
}

// WriteSubscribedTags persists the current subscribed-tag set under
// the shared "tags" key, so a restarted hub knows what to re-poll
// before any consumer resubscribes.
func (s *Store) WriteSubscribedTags(ctx context.Context, tags []tag.Identifier) error {
	return s.WriteJson(ctx, tagsKey, tags)
}

// ReadSubscribedTags loads the last persisted subscribed-tag set.
func (s *Store) ReadSubscribedTags(ctx context.Context) ([]tag.Identifier, error) {
	var out []tag.Identifier
	_, err := s.ReadJson(ctx, tagsKey, &out)
	return out, err
}

// LoadAllValues returns every persisted snapshot in the bucket, scoped
// to this Store's prefix. Intended for a one-shot warm load at startup
// so the cache is populated before the first subscriber arrives,
// rather than waiting on a per-tag lazy fetch.
func (s *Store) LoadAllValues(ctx context.Context) ([]tag.QueryResult, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if err == nats.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	prefix := s.key(valueKeyPrefix)
	var out []tag.QueryResult
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry, err := s.kv.Get(k)
		if err != nil {
			continue
		}
		var qr tag.QueryResult
		if err := json.Unmarshal(entry.Value(), &qr); err != nil {
			continue
		}
		out = append(out, qr)
	}
	return out, nil
}
