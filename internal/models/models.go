package models

import (
	"encoding/json"
	"time"
)

// Frame types produced by the server.
const (
	FrameConnected           = "connected"
	FrameCollaboratorJoined  = "collaborator-joined"
	FrameCollaboratorLeft    = "collaborator-left"
	FrameCollaboratorsUpdate = "collaborators-update"
	FrameServerShutdown      = "server-shutdown"
)

// Presence event types published for the REST tier.
const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

/*** WebSocket frames ***/
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundFrame is a client frame whose data has not been decoded yet.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Connected struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type Collaborator struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}

type CollaboratorsUpdate struct {
	Collaborators []Collaborator `json:"collaborators"`
}

// CollaboratorNotice names the member whose join or departure changed the room.
type CollaboratorNotice struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

/*** Redis messages ***/

// PresenceEvent is published whenever room membership changes.
type PresenceEvent struct {
	Type       string    `json:"type"` // "joined", "left"
	ScriptID   string    `json:"scriptId"`
	UserID     string    `json:"userId"`
	InstanceID string    `json:"instanceId"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScriptEvent is a server-originated notification fanned out to a whole room.
type ScriptEvent struct {
	ScriptID string          `json:"scriptId"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
}

/*** REST payloads ***/
type BroadcastRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type BroadcastResponse struct {
	Delivered int `json:"delivered"`
}

type RoomStatus struct {
	ScriptID      string         `json:"scriptId"`
	Collaborators []Collaborator `json:"collaborators"`
}

type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}
