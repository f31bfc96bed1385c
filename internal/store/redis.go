// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"feed-sync/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 8

// RedisStore keeps each document as a JSON string and announces every write on
// a per-collection Pub/Sub channel. Live subscriptions re-read on each
// announcement and deliver when their result changed.
//
// Keys:
//
//	{prefix}:doc:{collection}:{id}   JSON document body
//	{prefix}:ids:{collection}        set of document ids
//	{prefix}:changes:{collection}    channel carrying the changed id
type RedisStore struct {
	client *redis.Client
	prefix string
	logger logger.Logger
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "feed"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.Component(log, "redis-store"),
		now:    time.Now,
	}
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:doc:%s:%s", s.prefix, collection, id)
}

func (s *RedisStore) idsKey(collection string) string {
	return fmt.Sprintf("%s:ids:%s", s.prefix, collection)
}

func (s *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:changes:%s", s.prefix, collection)
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	raw, err := s.client.Get(ctx, s.docKey(collection, id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data, Exists: true}, nil
}

// Update applies fields inside WATCH/MULTI so concurrent array unions on the
// same document never lose an element.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	key := s.docKey(collection, id)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decode(raw)
		if err != nil {
			return err
		}
		next, err := ApplyUpdate(current, fields, s.now())
		if err != nil {
			return err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return s.announce(ctx, collection, id)
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return fmt.Errorf("update %s/%s: too much contention", collection, id)
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	normalized, err := NormalizeData(data)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	body, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, id), body, 0)
		pipe.SAdd(ctx, s.idsKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return s.announce(ctx, collection, id)
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(collection, id))
		pipe.SRem(ctx, s.idsKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return s.announce(ctx, collection, id)
}

func (s *RedisStore) announce(ctx context.Context, collection, id string) error {
	if err := s.client.Publish(ctx, s.channel(collection), id).Err(); err != nil {
		// The write itself landed; listeners catch up on the next announcement.
		s.logger.Warn("change announcement failed", map[string]interface{}{
			"collection": collection,
			"id":         id,
			"error":      err.Error(),
		})
	}
	return nil
}

// RunQuery reads every document of q.Collection and filters it locally.
// Each change announcement re-runs it for every live query on the collection.
// TODO: keep per-field id sets for the uid and city/bloodGroup equality
// filters so a query reads only its candidate ids.
func (s *RedisStore) RunQuery(ctx context.Context, q Query) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}
	docs := make([]Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(q.Collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		data, err := decode(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable document", map[string]interface{}{
				"collection": q.Collection,
				"id":         ids[i],
				"error":      err.Error(),
			})
			continue
		}
		if q.Matches(data) {
			docs = append(docs, Document{ID: ids[i], Data: data, Exists: true})
		}
	}
	sortDocs(docs)
	return docs, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if onSnapshot == nil {
		return nil, fmt.Errorf("subscribe %s: nil snapshot callback", q)
	}
	var last []Document
	read := func(ctx context.Context) (bool, error) {
		docs, err := s.RunQuery(ctx, q)
		if err != nil {
			return false, err
		}
		if last != nil && reflect.DeepEqual(docs, last) {
			return false, nil
		}
		last = docs
		return true, nil
	}
	deliver := func() { onSnapshot(last) }
	return s.listen(ctx, q.Collection, "", read, deliver, onError)
}

func (s *RedisStore) SubscribeDoc(ctx context.Context, collection, id string, onDoc DocFunc, onError ErrorFunc) (Unsubscribe, error) {
	if onDoc == nil {
		return nil, fmt.Errorf("subscribe %s/%s: nil document callback", collection, id)
	}
	var last *Document
	read := func(ctx context.Context) (bool, error) {
		doc, err := s.Get(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			doc, err = &Document{ID: id}, nil
		}
		if err != nil {
			return false, err
		}
		if last != nil && reflect.DeepEqual(*doc, *last) {
			return false, nil
		}
		last = doc
		return true, nil
	}
	deliver := func() { onDoc(*last) }
	return s.listen(ctx, collection, id, read, deliver, onError)
}

// listen subscribes to the collection channel, delivers the initial read once
// the subscription is confirmed, and re-reads on every announcement. onlyID
// filters announcements for point subscriptions.
func (s *RedisStore) listen(
	ctx context.Context,
	collection, onlyID string,
	read func(context.Context) (bool, error),
	deliver func(),
	onError ErrorFunc,
) (Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var closed atomic.Bool
	fail := func(err error) {
		if closed.Swap(true) {
			return
		}
		if onError != nil {
			onError(err)
		}
	}

	go func() {
		defer pubsub.Close()

		if changed, err := read(runCtx); err != nil {
			fail(err)
			return
		} else if changed && !closed.Load() {
			deliver()
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					if runCtx.Err() == nil {
						fail(fmt.Errorf("subscription to %s closed", collection))
					}
					return
				}
				if onlyID != "" && msg.Payload != onlyID {
					continue
				}
				changed, err := read(runCtx)
				if err != nil {
					if runCtx.Err() != nil {
						return
					}
					fail(err)
					return
				}
				if changed && !closed.Load() {
					deliver()
				}
			}
		}
	}()

	return func() {
		closed.Store(true)
		cancel()
	}, nil
}

func decode(raw string) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}
