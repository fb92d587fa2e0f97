package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/logging"
)

type mockChannel struct {
	name string
	mu   sync.Mutex
	sent []Payload
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Send(ctx context.Context, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

func (m *mockChannel) getSent() []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payload, len(m.sent))
	copy(out, m.sent)
	return out
}

func TestManagerFansOutToAllChannels(t *testing.T) {
	m := NewManager(logging.NewNop())
	ch1 := &mockChannel{name: "one"}
	ch2 := &mockChannel{name: "two"}
	m.AddChannel(ch1)
	m.AddChannel(ch2)

	m.Notify(context.Background(), core.NotifyOrderPlaced, map[string]string{"order_id": "1"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(ch1.getSent()) == 1 && len(ch2.getSent()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(ch1.getSent()) != 1 || len(ch2.getSent()) != 1 {
		t.Fatalf("expected both channels to receive one notification, got %d and %d", len(ch1.getSent()), len(ch2.getSent()))
	}
	if ch1.getSent()[0].Kind != core.NotifyOrderPlaced {
		t.Fatalf("unexpected kind: %v", ch1.getSent()[0].Kind)
	}
}

func TestLogChannelNeverErrors(t *testing.T) {
	c := NewLogChannel(logging.NewNop())
	if err := c.Send(context.Background(), Payload{Kind: core.NotifyErrorOccurred}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
