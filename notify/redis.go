package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "generation:"
	publishTimeout = 5 * time.Second
)

// RedisBridge mirrors progress updates across server instances over
// Redis pub/sub, so a subscriber connected to one instance still sees
// updates from the instance running the generation.
type RedisBridge struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBridge(client *redis.Client, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{client: client, logger: logger}
}

func (b *RedisBridge) Publish(ctx context.Context, generationID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, channelPrefix+generationID, payload).Err()
}

func (b *RedisBridge) Subscribe(generationID string, handler func(payload []byte)) (func(), error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, channelPrefix+generationID)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", generationID, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return cancelCtx, nil
}
