package relay

import (
	"encoding/json"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		event   string
	}{
		{"plain event", `{"event":"typing","data":{"conversationId":"c1","isTyping":true}}`, false, EventTyping},
		{"no data", `{"event":"leave-conversation"}`, false, EventLeaveConversation},
		{"missing event", `{"data":{}}`, true, ""},
		{"blank event", `{"event":"  "}`, true, ""},
		{"not json", `hello`, true, ""},
		{"array", `[1,2,3]`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got frame %+v", f)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Event != tt.event {
				t.Fatalf("event = %q, want %q", f.Event, tt.event)
			}
		})
	}
}

func TestMarshalFrameRoundTrip(t *testing.T) {
	raw, err := MarshalFrame(EventUserTyping, UserTypingPayload{
		UserID: "u1", UserName: "Alice", IsTyping: true, ConversationID: "c1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var p UserTypingPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.UserID != "u1" || !p.IsTyping {
		t.Fatalf("payload = %+v", p)
	}
}

func TestMarshalFrameNilData(t *testing.T) {
	raw, err := MarshalFrame(EventConnected, nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Data) != 0 {
		t.Fatalf("expected empty data, got %s", f.Data)
	}
}

func TestDecodeSendMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"conversationId":"c1","message":{"text":"hi"}}`, false},
		{"missing conversation", `{"message":{"text":"hi"}}`, true},
		{"missing message", `{"conversationId":"c1"}`, true},
		{"not an object", `"just a string"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodeSendMessage(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ConversationID != "c1" || p.Message["text"] != "hi" {
				t.Fatalf("payload = %+v", p)
			}
		})
	}
}

func TestDecodeTyping(t *testing.T) {
	p, err := decodeTyping(json.RawMessage(`{"conversationId":"c1","isTyping":false}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ConversationID != "c1" || p.IsTyping {
		t.Fatalf("payload = %+v", p)
	}
	if _, err := decodeTyping(json.RawMessage(`{"isTyping":true}`)); err == nil {
		t.Fatalf("expected error for missing conversationId")
	}
}

func TestDecodeConversationID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare string", `"c1"`, "c1", false},
		{"object form", `{"conversationId":"c2"}`, "c2", false},
		{"empty string", `""`, "", true},
		{"empty object", `{}`, "", true},
		{"number", `42`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeConversationID(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeAuth(t *testing.T) {
	p, err := decodeAuth(json.RawMessage(`{"token":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Token != "abc" {
		t.Fatalf("token = %q", p.Token)
	}
}
