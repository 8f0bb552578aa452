package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

// Compile-time check to ensure RedisStore implements QuoteStore
var _ QuoteStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // guards pubsub subscription changes
}

func NewRedisStore(client *redis.Client) *RedisStore {
	ps := client.Subscribe(context.Background())
	return &RedisStore{
		client: client,
		pubsub: ps,
	}
}

// GetSnapshots fetches the latest quote for a list of companies (MGET)
func (r *RedisStore) GetSnapshots(ctx context.Context, companies []string) ([]string, error) {
	if len(companies) == 0 {
		return nil, nil
	}

	keys := make([]string, len(companies))
	for i, c := range companies {
		keys[i] = models.SnapshotKey(c)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

func (r *RedisStore) GetSnapshot(ctx context.Context, company string) (*models.Quote, error) {
	b, err := r.client.Get(ctx, models.SnapshotKey(company)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", company, err)
	}
	return codec.JSON.Decode(b)
}

// SubscribeToFeed tells Redis we want to listen to this company's channel
func (r *RedisStore) SubscribeToFeed(ctx context.Context, company string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, models.Channel(company))
}

// UnsubscribeFromFeed tells Redis to stop sending messages for this channel
func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, company string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, models.Channel(company))
}

// RunPubSub blocks, handing every quote message to onMessage, until ctx is
// done or the subscription is closed.
func (r *RedisStore) RunPubSub(ctx context.Context, onMessage func(company string, payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			company, ok := models.CompanyFromChannel(msg.Channel)
			if !ok {
				continue
			}
			onMessage(company, msg.Payload)
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
