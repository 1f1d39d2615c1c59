package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestLocalBroker(t *testing.T) {
	sink := &recordingSink{}
	b := NewLocalBroker(sink)

	require.NoError(t, b.Publish(context.Background(), Event{Type: EventMessageNew, ConversationID: "c1"}))
	assert.Len(t, sink.Events(), 1)
}

func TestRedisBrokerFansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newBroker := func(sink Sink) *RedisBroker {
		b := NewRedisBroker(redis.NewClient(&redis.Options{Addr: mr.Addr()}), sink)
		go func() { _ = b.Run(ctx) }()
		select {
		case <-b.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("broker did not subscribe")
		}
		return b
	}

	sinkA, sinkB := &recordingSink{}, &recordingSink{}
	a := newBroker(sinkA)
	newBroker(sinkB)

	ev := Event{Type: EventMessageNew, ConversationID: "c1", MessageID: "m1"}
	require.NoError(t, a.Publish(ctx, ev))

	require.Eventually(t, func() bool {
		return len(sinkA.Events()) == 1 && len(sinkB.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ev, sinkB.Events()[0])
}
