package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"kneeflexiq/internal/config"
)

func testClient() *Client {
	return NewClient(config.Agent{
		DeviceID:     "knee-left",
		MQTTBroker:   "127.0.0.1",
		MQTTPort:     1, // nothing listens here
		MQTTClientID: "test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTopics(t *testing.T) {
	if got := telemetryTopic("knee-left"); got != "devices/knee-left/flex" {
		t.Errorf("telemetryTopic = %q", got)
	}
	if got := healthTopic("knee-left"); got != "devices/knee-left/health" {
		t.Errorf("healthTopic = %q", got)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c := testClient()
	if err := c.PublishReading(512, time.Now()); err == nil {
		t.Fatal("PublishReading error = nil, want not connected")
	}
	if err := c.PublishLinkHealth(true, time.Now()); err == nil {
		t.Fatal("PublishLinkHealth error = nil, want not connected")
	}
}

func TestConnect_RespectsContext(t *testing.T) {
	c := testClient()
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect err = %v, want context.DeadlineExceeded", err)
	}
}

func TestConnect_AfterDisconnect(t *testing.T) {
	c := testClient()
	c.Disconnect()
	c.Disconnect()

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Disconnect error = nil, want client stopped")
	}
	if c.IsConnected() {
		t.Fatal("IsConnected() = true after Disconnect")
	}
}

// pendingToken never completes, like a publish stuck behind a slow broker.
type pendingToken struct {
	done chan struct{}
}

func (t *pendingToken) Wait() bool {
	<-t.done
	return true
}

func (t *pendingToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *pendingToken) Done() <-chan struct{} { return t.done }
func (t *pendingToken) Error() error          { return nil }

type slowBroker struct {
	paho.Client
	mu        sync.Mutex
	published []string
	token     *pendingToken
}

func (b *slowBroker) IsConnected() bool { return true }

func (b *slowBroker) Publish(topic string, _ byte, _ bool, _ interface{}) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, topic)
	return b.token
}

func TestPublish_DoesNotWaitForBroker(t *testing.T) {
	token := &pendingToken{done: make(chan struct{})}
	defer close(token.done)
	broker := &slowBroker{token: token}

	c := testClient()
	c.client = broker
	c.setConnected(true)

	start := time.Now()
	if err := c.PublishReading(512, start); err != nil {
		t.Fatalf("PublishReading: %v", err)
	}
	if err := c.PublishLinkHealth(true, start); err != nil {
		t.Fatalf("PublishLinkHealth: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("publishing took %v with an unacknowledged broker", elapsed)
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	want := []string{"devices/knee-left/flex", "devices/knee-left/health"}
	if len(broker.published) != len(want) {
		t.Fatalf("published %v, want %v", broker.published, want)
	}
	for i := range want {
		if broker.published[i] != want[i] {
			t.Errorf("published[%d] = %q, want %q", i, broker.published[i], want[i])
		}
	}
}
