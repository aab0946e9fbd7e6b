package events

import (
	"context"
	"encoding/json"
	"sync"

	"leaddesk/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channel = "leaddesk:messages"

// Broker fans saved messages out to push-stream subscribers. With Redis
// configured, publishes go through the shared channel so every server
// instance sees every message; without it, delivery is in-process only.
type Broker struct {
	mu   sync.RWMutex
	subs map[int64]map[chan models.Message]struct{}

	rdb *redis.Client
	log zerolog.Logger
}

func NewBroker(rdb *redis.Client, log zerolog.Logger) *Broker {
	return &Broker{
		subs: make(map[int64]map[chan models.Message]struct{}),
		rdb:  rdb,
		log:  log,
	}
}

// Publish hands a freshly saved message to subscribers. Local delivery
// always happens here; Redis additionally relays it to other instances.
func (b *Broker) Publish(ctx context.Context, m models.Message) {
	b.deliver(m)
	if b.rdb == nil {
		return
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).Msg("redis publish failed")
	}
}

// Run pumps messages published by other instances into local
// subscribers. Returns when ctx is cancelled. No-op without Redis.
func (b *Broker) Run(ctx context.Context) {
	if b.rdb == nil {
		<-ctx.Done()
		return
	}
	pubsub := b.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m models.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.Warn().Err(err).Msg("bad relay payload")
				continue
			}
			b.deliver(m)
		}
	}
}

// Subscribe returns a channel of messages for one lead's thread and a
// cancel func that must be called on teardown. A duplicate delivery is
// possible when Redis relays a locally published message; subscribers
// dedup by message id anyway.
func (b *Broker) Subscribe(leadID int64) (<-chan models.Message, func()) {
	ch := make(chan models.Message, 16)

	b.mu.Lock()
	if b.subs[leadID] == nil {
		b.subs[leadID] = make(map[chan models.Message]struct{})
	}
	b.subs[leadID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[leadID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, leadID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Broker) deliver(m models.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[m.LeadID] {
		select {
		case ch <- m:
		default:
			// Slow subscriber: drop rather than block the pump. The
			// client's regular poll reconciles anything missed.
		}
	}
}
