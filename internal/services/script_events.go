package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scriptcollab/internal/models"
)

const (
	ScriptEventsChannel = "scriptcollab:script-events"
	PresenceChannel     = "scriptcollab:presence"
)

// RoomBroadcaster fans a frame out to every member of a script room.
type RoomBroadcaster interface {
	BroadcastToRoom(scriptID string, frame models.WSFrame) int
}

// ScriptEvents bridges Redis and the hub: it relays script events published
// by the REST tier into rooms, and publishes presence changes back out.
type ScriptEvents struct {
	rdb        *redis.Client
	log        *zap.Logger
	instanceID string
}

func NewScriptEvents(rdb *redis.Client, log *zap.Logger) *ScriptEvents {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScriptEvents{
		rdb:        rdb,
		log:        log,
		instanceID: uuid.New().String(),
	}
}

// GetInstanceID returns the ID stamped on presence events from this process.
func (s *ScriptEvents) GetInstanceID() string {
	return s.instanceID
}

// PublishPresence implements session.PresencePublisher.
func (s *ScriptEvents) PublishPresence(ctx context.Context, event models.PresenceEvent) error {
	event.InstanceID = s.instanceID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}
	return s.rdb.Publish(ctx, PresenceChannel, data).Err()
}

// Start subscribes to script events and returns once the subscription is
// confirmed. Messages are handled in the background until ctx is done.
func (s *ScriptEvents) Start(ctx context.Context, hub RoomBroadcaster) error {
	pubsub := s.rdb.Subscribe(ctx, ScriptEventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", ScriptEventsChannel, err)
	}
	s.log.Info("subscribed to script events", zap.String("instance", s.instanceID))

	go s.consume(ctx, pubsub, hub)
	return nil
}

func (s *ScriptEvents) consume(ctx context.Context, pubsub *redis.PubSub, hub RoomBroadcaster) {
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping script event subscriber", zap.String("instance", s.instanceID))
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(hub, msg.Payload)
		}
	}
}

func (s *ScriptEvents) handleMessage(hub RoomBroadcaster, payload string) int {
	var event models.ScriptEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.log.Warn("failed to parse script event", zap.Error(err))
		return 0
	}
	if event.ScriptID == "" || event.Type == "" {
		s.log.Warn("script event missing scriptId or type", zap.String("payload", payload))
		return 0
	}

	delivered := hub.BroadcastToRoom(event.ScriptID, models.WSFrame{Type: event.Type, Data: event.Data})
	s.log.Debug("script event delivered",
		zap.String("scriptId", event.ScriptID), zap.String("type", event.Type), zap.Int("recipients", delivered))
	return delivered
}
