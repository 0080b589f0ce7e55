package session

import (
	"encoding/json"
	"errors"
	"testing"

	"scriptcollab/internal/models"
)

func frame(typ, data string) models.InboundFrame {
	return models.InboundFrame{Type: typ, Data: json.RawMessage(data)}
}

func TestParseEventKindRoundTrip(t *testing.T) {
	for kind, name := range eventNames {
		got, ok := ParseEventKind(name)
		if !ok || got != kind {
			t.Fatalf("ParseEventKind(%q) = %v, %v", name, got, ok)
		}
		if kind.String() != name {
			t.Fatalf("String() = %q, want %q", kind.String(), name)
		}
	}
	if _, ok := ParseEventKind("collaborators-update"); ok {
		t.Fatalf("server frame types must not parse as client events")
	}
	if EventKind(99).String() != "unknown" {
		t.Fatalf("expected unknown name for out-of-range kind")
	}
}

func TestEveryRelayKindHasRule(t *testing.T) {
	for kind := range eventNames {
		rule, ok := kind.relay()
		membership := kind == EventJoinScript || kind == EventLeaveScript
		if membership == ok {
			t.Fatalf("%s: relay() ok=%v", kind, ok)
		}
		if ok && rule.outbound == "" {
			t.Fatalf("%s: missing outbound name", kind)
		}
	}
}

func TestDecodeEventContentChange(t *testing.T) {
	ev, err := DecodeEvent(frame("content-change", `{"scriptId":42,"userId":1,"content":"INT. ROOM"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventContentChange || ev.ScriptID != "42" || ev.UserID != "1" {
		t.Fatalf("unexpected event: %#v", ev)
	}
	if string(ev.Payload) != `"INT. ROOM"` {
		t.Fatalf("payload must be kept verbatim, got %s", ev.Payload)
	}
}

func TestDecodeEventStringIDsAndObjectPayload(t *testing.T) {
	ev, err := DecodeEvent(frame("text-selection", `{"scriptId":"abc","userId":"u-1","selection":{"start":1,"end":4}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ScriptID != "abc" || ev.UserID != "u-1" {
		t.Fatalf("unexpected ids: %#v", ev)
	}
	if string(ev.Payload) != `{"start":1,"end":4}` {
		t.Fatalf("unexpected payload %s", ev.Payload)
	}
}

func TestDecodeEventMissingUserIDIsNotMalformed(t *testing.T) {
	ev, err := DecodeEvent(frame("join-script", `{"scriptId":"42"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.UserID != "" || ev.Payload != nil {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestDecodeEventErrors(t *testing.T) {
	cases := []struct {
		name string
		in   models.InboundFrame
		want error
	}{
		{"unknown type", frame("run", `{"scriptId":"1"}`), ErrUnknownEvent},
		{"not an object", frame("join-script", `"oops"`), ErrMalformedEvent},
		{"null data", frame("join-script", `null`), ErrMalformedEvent},
		{"missing script", frame("join-script", `{"userId":"1"}`), ErrMalformedEvent},
		{"empty script", frame("leave-script", `{"scriptId":"","userId":"1"}`), ErrMalformedEvent},
		{"bool script", frame("leave-script", `{"scriptId":true,"userId":"1"}`), ErrMalformedEvent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeEvent(tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestIDStringNormalizesNumbers(t *testing.T) {
	cases := map[string]string{
		`7`:     "7",
		`7.0`:   "7",
		`"7"`:   "7",
		`-3`:    "-3",
		`1.5`:   "1.5",
		`"x-y"`: "x-y",
	}
	for in, want := range cases {
		got, ok := idString(json.RawMessage(in))
		if !ok || got != want {
			t.Fatalf("idString(%s) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := idString(nil); ok {
		t.Fatalf("expected nil raw to be rejected")
	}
	if _, ok := idString(json.RawMessage(`null`)); ok {
		t.Fatalf("expected null to be rejected")
	}
}
