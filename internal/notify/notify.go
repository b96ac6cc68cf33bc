// Package notify fans status changes out to a Redis pub/sub channel so
// other processes can follow pairing progress without polling. Nothing is
// stored; subscribers that are not listening miss the message.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pairwatch/internal/config"
	"pairwatch/internal/metrics"
	"pairwatch/internal/status"
)

const (
	queueSize      = 32
	publishTimeout = 2 * time.Second
)

// Message is the JSON payload published for every status transition.
type Message struct {
	Phase      string  `json:"phase"`
	Message    string  `json:"message"`
	QR         *string `json:"qr"`
	ArtifactID string  `json:"artifactId,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Encode renders st as a Message payload.
func Encode(st status.Status) ([]byte, error) {
	msg := Message{
		Phase:      string(st.Phase),
		Message:    st.Message,
		ArtifactID: st.ArtifactID,
		Timestamp:  st.UpdatedAt.Unix(),
	}
	if st.Artifact != "" {
		qr := st.Artifact
		msg.QR = &qr
	}
	return json.Marshal(msg)
}

// Publisher publishes status snapshots to Redis. A nil *Publisher is valid
// and does nothing, which is what New returns when no URL is configured.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
	queue   chan status.Status
}

// New connects lazily to cfg.URL. It returns nil, nil when Redis is not
// configured.
func New(cfg config.RedisConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, &config.ConfigError{Field: "redis.url", Reason: "invalid redis url", Err: err}
	}
	if logger == nil {
		logger = slog.Default()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = config.Default().Redis.Channel
	}
	return &Publisher{
		client:  redis.NewClient(opt),
		channel: channel,
		logger:  logger,
		queue:   make(chan status.Status, queueSize),
	}, nil
}

// Enabled reports whether publishing is configured.
func (p *Publisher) Enabled() bool {
	return p != nil
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string {
	if p == nil {
		return ""
	}
	return p.channel
}

// Enqueue schedules st for publication without blocking the caller. When
// the queue is full the snapshot is dropped.
func (p *Publisher) Enqueue(st status.Status) {
	if p == nil {
		return
	}
	select {
	case p.queue <- st:
	default:
		metrics.RecordNotify(false)
		p.logger.Warn("status notification dropped, queue full", "phase", st.Phase)
	}
}

// Run publishes queued snapshots in order until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-p.queue:
			if err := p.publish(ctx, st); err != nil {
				p.logger.Warn("status notification failed", "channel", p.channel, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, st status.Status) error {
	payload, err := Encode(st)
	if err != nil {
		metrics.RecordNotify(false)
		return fmt.Errorf("encode status: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.client.Publish(ctx, p.channel, payload).Err()
	metrics.RecordNotify(err == nil)
	return err
}

// Ping checks Redis connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
