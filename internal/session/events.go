package session

import (
	"encoding/json"
	"errors"
	"strconv"

	"scriptcollab/internal/models"
)

var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMalformedEvent = errors.New("malformed event data")
)

// EventKind enumerates every client event the hub understands.
type EventKind int

const (
	EventJoinScript EventKind = iota
	EventLeaveScript
	EventContentChange
	EventCursorPosition
	EventTextSelection
	EventAddComment
	EventResolveComment
	EventTypingStart
	EventTypingStop
)

var eventNames = map[EventKind]string{
	EventJoinScript:     "join-script",
	EventLeaveScript:    "leave-script",
	EventContentChange:  "content-change",
	EventCursorPosition: "cursor-position",
	EventTextSelection:  "text-selection",
	EventAddComment:     "add-comment",
	EventResolveComment: "resolve-comment",
	EventTypingStart:    "typing-start",
	EventTypingStop:     "typing-stop",
}

var eventKinds = func() map[string]EventKind {
	out := make(map[string]EventKind, len(eventNames))
	for k, name := range eventNames {
		out[name] = k
	}
	return out
}()

// ParseEventKind maps an inbound frame type to its kind.
func ParseEventKind(name string) (EventKind, bool) {
	k, ok := eventKinds[name]
	return k, ok
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// relayRule says how a relay kind is re-emitted to the rest of the room.
type relayRule struct {
	outbound string
	field    string // payload field copied verbatim, empty for none
	typing   *bool
}

var (
	typingOn  = true
	typingOff = false
)

// relay returns the re-emit rule for relay kinds; membership kinds report false.
func (k EventKind) relay() (relayRule, bool) {
	switch k {
	case EventContentChange:
		return relayRule{outbound: "content-change", field: "content"}, true
	case EventCursorPosition:
		return relayRule{outbound: "cursor-position", field: "position"}, true
	case EventTextSelection:
		return relayRule{outbound: "text-selection", field: "selection"}, true
	case EventAddComment:
		return relayRule{outbound: "comment-added", field: "comment"}, true
	case EventResolveComment:
		return relayRule{outbound: "comment-resolved", field: "commentId"}, true
	case EventTypingStart:
		return relayRule{outbound: "user-typing", typing: &typingOn}, true
	case EventTypingStop:
		return relayRule{outbound: "user-typing", typing: &typingOff}, true
	case EventJoinScript, EventLeaveScript:
		return relayRule{}, false
	}
	return relayRule{}, false
}

// Event is a decoded client event.
type Event struct {
	Kind     EventKind
	ScriptID string
	UserID   string
	Payload  json.RawMessage
}

// DecodeEvent validates the frame type and extracts the routing fields and payload.
func DecodeEvent(frame models.InboundFrame) (Event, error) {
	kind, ok := ParseEventKind(frame.Type)
	if !ok {
		return Event{}, ErrUnknownEvent
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame.Data, &fields); err != nil || fields == nil {
		return Event{}, ErrMalformedEvent
	}

	scriptID, ok := idString(fields["scriptId"])
	if !ok {
		return Event{}, ErrMalformedEvent
	}
	// A missing userId is not malformed; it fails the identity check instead.
	userID, _ := idString(fields["userId"])

	ev := Event{Kind: kind, ScriptID: scriptID, UserID: userID}
	if rule, isRelay := kind.relay(); isRelay && rule.field != "" {
		ev.Payload = fields[rule.field]
	}
	return ev, nil
}

// idString accepts identifiers sent either as JSON strings or numbers.
func idString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), true
	}
	return n.String(), true
}
