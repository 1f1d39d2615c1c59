package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "conversation:"

// Broker publishes events to every instance's hub
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Run delivers published events to the local sink until ctx is done
	Run(ctx context.Context) error
}

// LocalBroker delivers straight to the in-process hub. Used when Redis is not configured.
type LocalBroker struct {
	sink Sink
}

func NewLocalBroker(sink Sink) *LocalBroker {
	return &LocalBroker{sink: sink}
}

func (b *LocalBroker) Publish(_ context.Context, ev Event) error {
	b.sink.Broadcast(ev)
	return nil
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// RedisBroker publishes each event on conversation:<id>. Run holds one pattern subscription
// per instance and fans events into the local hub.
type RedisBroker struct {
	client *redis.Client
	sink   Sink
	ready  chan struct{}
}

func NewRedisBroker(client *redis.Client, sink Sink) *RedisBroker {
	return &RedisBroker{client: client, sink: sink, ready: make(chan struct{})}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+ev.ConversationID, payload).Err()
}

func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	close(b.ready)
	log.Println("Realtime broker subscribed to Redis.")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("realtime: bad event on %s: %v", msg.Channel, err)
				continue
			}
			if ev.ConversationID == "" {
				ev.ConversationID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			b.sink.Broadcast(ev)
		}
	}
}

// Ready is closed once Run's subscription is active
func (b *RedisBroker) Ready() <-chan struct{} {
	return b.ready
}
