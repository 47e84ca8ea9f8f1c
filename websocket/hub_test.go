package websocket

import (
	"testing"
	"time"
)

func timeout() <-chan time.Time {
	return time.After(2 * time.Second)
}

func TestWantsTopic(t *testing.T) {
	tests := []struct {
		name     string
		topics   []string
		topic    string
		expected bool
	}{
		{"no subscription receives everything", nil, "call.started", true},
		{"exact match", []string{"call.started"}, "call.started", true},
		{"exact mismatch", []string{"call.started"}, "call.ended", false},
		{"family wildcard matches", []string{"call.*"}, "call.ended", true},
		{"family wildcard excludes others", []string{"call.*"}, "trunk.status_changed", false},
		{"star matches everything", []string{"*"}, "trunk.status_changed", true},
		{"multiple patterns", []string{"trunk.*", "call.ended"}, "call.ended", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			client.Subscribe(tt.topics)
			if got := client.wantsTopic(tt.topic); got != tt.expected {
				t.Errorf("wantsTopic(%q) with topics %v = %v, expected %v", tt.topic, tt.topics, got, tt.expected)
			}
		})
	}
}

func TestHubPublishRouting(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	mine := &Client{Hub: hub, Send: make(chan []byte, 4), AccountID: "ACC_AAAA11112222", SessionID: "s1"}
	other := &Client{Hub: hub, Send: make(chan []byte, 4), AccountID: "ACC_BBBB11112222", SessionID: "s2"}
	hub.register <- mine
	hub.register <- other

	hub.Publish("ACC_AAAA11112222", "call.started", []byte(`{"call_id":"c1"}`))

	select {
	case msg := <-mine.Send:
		if string(msg) != `{"call_id":"c1"}` {
			t.Errorf("client received %q, expected the published payload", msg)
		}
	case <-timeout():
		t.Fatal("client of the owning account never received the event")
	}

	select {
	case msg := <-other.Send:
		t.Errorf("client of another account received %q", msg)
	default:
	}

	hub.unregister <- mine
	hub.unregister <- other
}

func TestClientCountDuringSlowClientEviction(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	for i := 0; i < 50; i++ {
		client := &Client{Hub: hub, Send: make(chan []byte, 1), AccountID: "ACC_TEST00000001"}
		client.Send <- []byte("stuck")
		select {
		case hub.register <- client:
		case <-timeout():
			t.Fatal("register timed out")
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.ClientCount()
		}
	}()

	hub.Publish("ACC_TEST00000001", "call.started", []byte("payload"))

	select {
	case <-done:
	case <-timeout():
		t.Fatal("ClientCount reader stalled")
	}

	deadline := time.After(2 * time.Second)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatalf("saturated clients not evicted, %d remain", hub.ClientCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
