package roomhub

import (
	"context"
	"encoding/json"
	"fmt"

	"meethub/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// fanoutMessage is a broadcast relayed between gateway instances.
type fanoutMessage struct {
	Origin   string          `json:"origin"`
	RoomID   string          `json:"roomId"`
	Audience Audience        `json:"audience"`
	Envelope models.Envelope `json:"envelope"`
}

// Fanout relays broadcasts to other gateway instances over redis pub/sub.
type Fanout struct {
	client     *redis.Client
	channel    string
	instanceID string
}

func NewFanout(client *redis.Client, keyPrefix string) *Fanout {
	return &Fanout{
		client:     client,
		channel:    keyPrefix + "broadcast",
		instanceID: ksuid.New().String(),
	}
}

func (f *Fanout) Publish(ctx context.Context, roomID string, audience Audience, env models.Envelope) error {
	data, err := json.Marshal(fanoutMessage{Origin: f.instanceID, RoomID: roomID, Audience: audience, Envelope: env})
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish broadcast for room %s: %w", roomID, err)
	}
	return nil
}

// PublishEvent encodes data as event and relays it to every gateway instance.
// Out-of-process tools use it to reach live connections.
func (f *Fanout) PublishEvent(ctx context.Context, roomID string, audience Audience, event string, data any) error {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return f.Publish(ctx, roomID, audience, env)
}

// StartPubSubListener delivers broadcasts from other instances to local connections
// until ctx is cancelled. The returned channel is closed once the subscription is active.
func (m *ManagerService) StartPubSubListener(ctx context.Context) <-chan struct{} {
	ready := make(chan struct{})
	if m.Fanout == nil {
		close(ready)
		return ready
	}
	f := m.Fanout
	pubsub := f.client.Subscribe(ctx, f.channel)
	go func() {
		defer pubsub.Close()
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Error().Err(err).Str("module", "roomhub").Msg("failed to subscribe to broadcast channel")
			close(ready)
			return
		}
		close(ready)
		log.Info().Str("module", "roomhub").Str("channel", f.channel).Str("instance", f.instanceID).Msg("listening for broadcasts")

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var fm fanoutMessage
				if err := json.Unmarshal([]byte(msg.Payload), &fm); err != nil {
					log.Warn().Err(err).Str("module", "roomhub").Msg("malformed broadcast")
					continue
				}
				if fm.Origin == f.instanceID {
					continue
				}
				m.deliverLocal(ctx, fm.RoomID, fm.Audience, fm.Envelope)
			}
		}
	}()
	return ready
}
