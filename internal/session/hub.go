package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"scriptcollab/internal/metrics"
	"scriptcollab/internal/models"
)

const publishTimeout = 2 * time.Second

// PresencePublisher receives membership changes after they are applied.
type PresencePublisher interface {
	PublishPresence(ctx context.Context, event models.PresenceEvent) error
}

// Hub owns the connection registry and the room table. Every handler runs
// under mu, so each event is applied and fanned out atomically with respect
// to all others, and each recipient sees frames in event order.
type Hub struct {
	mu        sync.Mutex
	registry  *Registry
	rooms     *RoomTable
	log       *zap.Logger
	now       func() time.Time
	publisher PresencePublisher
}

type Option func(*Hub)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func WithPresencePublisher(p PresencePublisher) Option {
	return func(h *Hub) { h.publisher = p }
}

func NewHub(log *zap.Logger, opts ...Option) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		registry: NewRegistry(),
		rooms:    NewRoomTable(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect admits an authenticated client, superseding any earlier
// connection of the same user.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	prev := h.registry.Register(c.UserID, c)
	n := h.registry.Len()
	h.mu.Unlock()

	metrics.SetConnections(n)
	if prev != nil && prev != c {
		h.log.Info("connection superseded",
			zap.String("userId", c.UserID),
			zap.String("previousSession", prev.SessionID),
			zap.String("session", c.SessionID))
	}
}

// Handle applies one client event. Events whose userId differs from the
// client's authenticated identity are dropped without any effect.
func (h *Hub) Handle(c *Client, ev Event) {
	if ev.UserID != c.UserID {
		metrics.EventDropped("identity_mismatch")
		h.log.Debug("dropping event with mismatched identity",
			zap.String("event", ev.Kind.String()),
			zap.String("session", c.SessionID),
			zap.String("claimed", ev.UserID),
			zap.String("authenticated", c.UserID))
		return
	}

	switch ev.Kind {
	case EventJoinScript:
		h.join(ev.ScriptID, ev.UserID)
	case EventLeaveScript:
		h.leave(ev.ScriptID, ev.UserID)
	case EventContentChange, EventCursorPosition, EventTextSelection,
		EventAddComment, EventResolveComment, EventTypingStart, EventTypingStop:
		h.relay(ev)
	default:
		h.log.Warn("unhandled event kind", zap.Int("kind", int(ev.Kind)))
	}
}

func (h *Hub) join(scriptID, userID string) {
	h.mu.Lock()
	if _, ok := h.registry.Lookup(userID); !ok {
		h.mu.Unlock()
		metrics.EventDropped("unregistered")
		return
	}
	added := h.rooms.Join(scriptID, userID)
	now := h.now().UTC()
	h.sendToOthers(scriptID, userID, models.WSFrame{
		Type: models.FrameCollaboratorJoined,
		Data: models.CollaboratorNotice{UserID: userID, Timestamp: now},
	})
	h.sendSnapshot(scriptID)
	rooms := h.rooms.Len()
	h.mu.Unlock()

	metrics.SetRooms(rooms)
	h.log.Debug("collaborator joined",
		zap.String("scriptId", scriptID), zap.String("userId", userID), zap.Bool("duplicate", !added))
	h.publish(models.PresenceEvent{Type: models.PresenceJoined, ScriptID: scriptID, UserID: userID, Timestamp: now})
}

func (h *Hub) leave(scriptID, userID string) {
	h.mu.Lock()
	if !h.rooms.Leave(scriptID, userID) {
		h.mu.Unlock()
		return
	}
	now := h.now().UTC()
	h.announceDeparture(scriptID, userID, now)
	rooms := h.rooms.Len()
	h.mu.Unlock()

	metrics.SetRooms(rooms)
	h.log.Debug("collaborator left", zap.String("scriptId", scriptID), zap.String("userId", userID))
	h.publish(models.PresenceEvent{Type: models.PresenceLeft, ScriptID: scriptID, UserID: userID, Timestamp: now})
}

func (h *Hub) relay(ev Event) {
	rule, ok := ev.Kind.relay()
	if !ok {
		return
	}

	h.mu.Lock()
	data := map[string]interface{}{
		"userId":    ev.UserID,
		"timestamp": h.now().UTC(),
	}
	if rule.field != "" && len(ev.Payload) > 0 {
		data[rule.field] = ev.Payload
	}
	if rule.typing != nil {
		data["isTyping"] = *rule.typing
	}
	h.sendToOthers(ev.ScriptID, ev.UserID, models.WSFrame{Type: rule.outbound, Data: data})
	h.mu.Unlock()

	metrics.EventRelayed(ev.Kind.String())
}

// Disconnect removes the client's user from every room, tells the remaining
// members, and unregisters the user. A client that was already superseded
// by a newer connection leaves the newer connection's state untouched.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	if current, ok := h.registry.Lookup(c.UserID); ok && current != c {
		h.mu.Unlock()
		c.Close()
		h.log.Debug("superseded connection closed",
			zap.String("userId", c.UserID), zap.String("session", c.SessionID))
		return
	}

	affected := h.rooms.RemoveEverywhere(c.UserID)
	now := h.now().UTC()
	for _, scriptID := range affected {
		h.announceDeparture(scriptID, c.UserID, now)
	}
	h.registry.Unregister(c.UserID)
	rooms, conns := h.rooms.Len(), h.registry.Len()
	h.mu.Unlock()

	c.Close()
	metrics.SetRooms(rooms)
	metrics.SetConnections(conns)
	h.log.Info("client disconnected",
		zap.String("userId", c.UserID), zap.String("session", c.SessionID), zap.Strings("rooms", affected))
	for _, scriptID := range affected {
		h.publish(models.PresenceEvent{Type: models.PresenceLeft, ScriptID: scriptID, UserID: c.UserID, Timestamp: now})
	}
}

// BroadcastToRoom sends a server-originated frame to every member of the
// room and returns the number of clients it was queued for.
func (h *Hub) BroadcastToRoom(scriptID string, frame models.WSFrame) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, userID := range h.rooms.Members(scriptID) {
		if h.deliver(userID, frame) {
			delivered++
		}
	}
	return delivered
}

// Collaborators returns the room's current member list.
func (h *Hub) Collaborators(scriptID string) []models.Collaborator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return collaborators(h.rooms.Members(scriptID))
}

func (h *Hub) Stats() models.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return models.Stats{Connections: h.registry.Len(), Rooms: h.rooms.Len()}
}

// Shutdown notifies and closes every registered client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.registry.Clients()
	h.mu.Unlock()

	for _, c := range clients {
		c.Send(models.WSFrame{
			Type: models.FrameServerShutdown,
			Data: map[string]string{"message": "Server is shutting down. Please reconnect."},
		})
		c.Close()
	}
	h.log.Info("hub shut down", zap.Int("clients", len(clients)))
}

// announceDeparture must be called with mu held, after the user was removed.
func (h *Hub) announceDeparture(scriptID, userID string, at time.Time) {
	h.sendToOthers(scriptID, userID, models.WSFrame{
		Type: models.FrameCollaboratorLeft,
		Data: models.CollaboratorNotice{UserID: userID, Timestamp: at},
	})
	h.sendSnapshot(scriptID)
}

func (h *Hub) sendSnapshot(scriptID string) {
	members := h.rooms.Members(scriptID)
	frame := models.WSFrame{
		Type: models.FrameCollaboratorsUpdate,
		Data: models.CollaboratorsUpdate{Collaborators: collaborators(members)},
	}
	for _, userID := range members {
		h.deliver(userID, frame)
	}
}

func (h *Hub) sendToOthers(scriptID, exclude string, frame models.WSFrame) {
	for _, userID := range h.rooms.Members(scriptID) {
		if userID == exclude {
			continue
		}
		h.deliver(userID, frame)
	}
}

func (h *Hub) deliver(userID string, frame models.WSFrame) bool {
	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	if !c.Send(frame) {
		h.log.Debug("frame not queued", zap.String("userId", userID), zap.String("type", frame.Type))
		return false
	}
	return true
}

func (h *Hub) publish(event models.PresenceEvent) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.publisher.PublishPresence(ctx, event); err != nil {
		h.log.Warn("presence publish failed",
			zap.String("scriptId", event.ScriptID), zap.String("userId", event.UserID), zap.Error(err))
	}
}

func collaborators(members []string) []models.Collaborator {
	out := make([]models.Collaborator, 0, len(members))
	for _, id := range members {
		out = append(out, models.Collaborator{ID: id, Online: true})
	}
	return out
}
