//go:build integration

package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// Integration tests against a running broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectAs(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectAs(t, "graylogic-telemetry-int-connect")
	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_OnlineStatusRetained(t *testing.T) {
	connectAs(t, "graylogic-telemetry-int-status")
	watcher := connectAs(t, "graylogic-telemetry-int-watch")

	received := make(chan statusMessage, 4)
	err := watcher.Subscribe(Topics{}.Status(), 1, func(_ string, p []byte) error {
		var msg statusMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			return err
		}
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-received:
			if msg.Status == statusOnline {
				return
			}
		case <-deadline:
			t.Fatal("no online status received")
		}
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectAs(t, "graylogic-telemetry-int-subs")
	noop := func(string, []byte) error { return nil }

	topics := []string{Topics{}.Command("publish"), Topics{}.Command("drain"), "sensors/int/temp"}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	client.mu.RLock()
	count := len(client.subs)
	client.mu.RUnlock()
	if count != len(topics) {
		t.Errorf("tracked subscriptions = %d, want %d", count, len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	client.mu.RLock()
	_, kept := client.subs[topics[0]]
	client.mu.RUnlock()
	if kept {
		t.Errorf("%s still tracked after unsubscribe", topics[0])
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	sub := connectAs(t, "graylogic-telemetry-int-sub")
	pub := connectAs(t, "graylogic-telemetry-int-pub")

	received := make(chan string, 1)
	var once sync.Once
	err := sub.Subscribe(Topics{}.AllCommands(), 1, func(topic string, p []byte) error {
		once.Do(func() { received <- topic + " " + string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(Topics{}.Command("publish"), []byte(`["env"]`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if want := `graylogic/telemetry/command/publish ["env"]`; got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for command")
	}
}
