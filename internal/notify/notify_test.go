package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"pairwatch/internal/config"
	"pairwatch/internal/status"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	p, err := New(config.RedisConfig{}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Enabled() {
		t.Fatalf("expected disabled publisher")
	}

	// All methods are safe on the nil publisher.
	p.Enqueue(status.Status{Phase: status.PhaseConnected})
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New(config.RedisConfig{URL: "http://not-redis"}, nil)
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewDefaultsChannel(t *testing.T) {
	p, err := New(config.RedisConfig{URL: "redis://127.0.0.1:1/0"}, slog.Default())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer p.Close()
	if p.Channel() != "pairwatch:status" {
		t.Fatalf("unexpected channel %q", p.Channel())
	}
}

func TestEncode(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	payload, err := Encode(status.Status{
		Phase:      status.PhaseArtifactReady,
		Artifact:   "█▀\n▄█",
		ArtifactID: "abc",
		Message:    status.MessageArtifactReady,
		UpdatedAt:  ts,
	})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if msg.QR == nil || *msg.QR != "█▀\n▄█" || msg.Phase != "artifact_ready" || msg.Timestamp != 1700000000 {
		t.Fatalf("unexpected message %#v", msg)
	}

	payload, err = Encode(status.Status{Phase: status.PhaseConnected, UpdatedAt: ts})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !bytes.Contains(payload, []byte(`"qr":null`)) {
		t.Fatalf("expected null qr, got %s", payload)
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	var logs bytes.Buffer
	p, err := New(config.RedisConfig{URL: "redis://127.0.0.1:1/0"}, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer p.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*2; i++ {
			p.Enqueue(status.Status{Phase: status.PhaseStarting})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Enqueue blocked with no consumer")
	}
	if !bytes.Contains(logs.Bytes(), []byte("queue full")) {
		t.Fatalf("expected dropped notification to be logged")
	}
}
