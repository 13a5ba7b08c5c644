package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPublisherConfig configures a RedisPublisher.
type RedisPublisherConfig struct {
	// Client is used when set and stays open after Close; otherwise one is
	// created for Addr and owned by the publisher.
	Client redis.UniversalClient
	Addr   string
	// Stream receives one XADD entry per event.
	Stream string
	// MaxLen trims the stream approximately; 0 disables trimming.
	MaxLen int64
	// Buffer is the number of events queued before new ones are dropped.
	Buffer int
}

// RedisPublisher appends events to a Redis stream from a background
// goroutine. Publish never blocks; events are dropped when the queue is full.
type RedisPublisher struct {
	client     redis.UniversalClient
	ownsClient bool
	stream     string
	maxLen     int64
	ch         chan Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRedisPublisher connects to Redis and starts the writer goroutine.
func NewRedisPublisher(ctx context.Context, cfg RedisPublisherConfig) (*RedisPublisher, error) {
	client := cfg.Client
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		if cfg.Client == nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if cfg.Stream == "" {
		cfg.Stream = "inferd:events"
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	p := &RedisPublisher{
		client:     client,
		ownsClient: cfg.Client == nil,
		stream:     cfg.Stream,
		maxLen:     cfg.MaxLen,
		ch:         make(chan Event, cfg.Buffer),
		done:       make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

func (p *RedisPublisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- e:
	default:
		log.Warn().Str("event", e.Name).Msg("event queue full, dropping")
	}
}

func (p *RedisPublisher) loop() {
	defer close(p.done)
	for e := range p.ch {
		fields, _ := json.Marshal(e.Fields)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: p.maxLen > 0,
			Values: map[string]any{
				"name":       e.Name,
				"session_id": e.SessionID,
				"model":      e.Model,
				"fields":     fields,
				"ts":         time.Now().UnixMilli(),
			},
		}).Err()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("event", e.Name).Msg("redis xadd failed")
		}
	}
}

// Close drains queued events and closes the client if the publisher created it.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	<-p.done
	if !p.ownsClient {
		return nil
	}
	return p.client.Close()
}
