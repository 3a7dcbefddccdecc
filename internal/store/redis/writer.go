package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"derivbot/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer mirrors bot updates into Redis: the latest snapshot of each
// update kind under bot:<kind>:latest with a TTL, plus a PubSub fan-out on
// pub:bot:<kind> for external dashboards. Both writes go out in one
// pipeline per update.
type Writer struct {
	client *goredis.Client

	// OnWriteDuration, when set, observes each pipeline round-trip.
	OnWriteDuration func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (w *Writer) Run(ctx context.Context, updates <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			w.writeUpdate(ctx, u)
		}
	}
}

func (w *Writer) writeUpdate(ctx context.Context, u model.Update) {
	jsonData := string(u.JSON())
	latestKey := LatestKey(u.Kind)
	pubsubCh := PubSubChannel(u.Kind)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	start := time.Now()
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] pipeline error for %s: %v", u.Kind, err)
	}
	if w.OnWriteDuration != nil {
		w.OnWriteDuration(time.Since(start))
	}
}

// LatestKey is the snapshot key for an update kind.
func LatestKey(kind model.UpdateKind) string {
	return "bot:" + string(kind) + ":latest"
}

// PubSubChannel is the fan-out channel for an update kind.
func PubSubChannel(kind model.UpdateKind) string {
	return "pub:bot:" + string(kind)
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
