package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	decode "PChat/tools/decode"
)

// The closed set of relay events. Inbound frames with any other event name
// are ignored.
const (
	EventAuth         = "auth"
	EventConnected    = "connected"
	EventConnectError = "connect_error"

	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventTyping            = "typing"

	EventNewMessage      = "new-message"
	EventUserTyping      = "user-typing"
	EventNewConversation = "new-conversation"
)

// Frame is the wire envelope for every relay event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if strings.TrimSpace(f.Event) == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return f, nil
}

func MarshalFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// ---- inbound payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type SendMessagePayload struct {
	ConversationID string         `json:"conversationId"`
	Message        map[string]any `json:"message"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ---- outbound payloads ----

type UserTypingPayload struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	IsTyping       bool   `json:"isTyping"`
	ConversationID string `json:"conversationId"`
}

type ConnectedPayload struct {
	ConnID string `json:"connId"`
	UserID string `json:"userId"`
}

func decodeAuth(data json.RawMessage) (*AuthPayload, error) {
	return decode.DecodeJSON[AuthPayload](data)
}

func decodeSendMessage(data json.RawMessage) (*SendMessagePayload, error) {
	p, err := decode.DecodeJSON[SendMessagePayload](data)
	if err != nil {
		return nil, err
	}
	if p.ConversationID == "" {
		return nil, fmt.Errorf("send-message: conversationId missing")
	}
	if p.Message == nil {
		return nil, fmt.Errorf("send-message: message missing")
	}
	return p, nil
}

func decodeTyping(data json.RawMessage) (*TypingPayload, error) {
	p, err := decode.DecodeJSON[TypingPayload](data)
	if err != nil {
		return nil, err
	}
	if p.ConversationID == "" {
		return nil, fmt.Errorf("typing: conversationId missing")
	}
	return p, nil
}

// decodeConversationID accepts both a bare JSON string ("c1", the shape the
// original clients send) and an object ({"conversationId":"c1"}).
func decodeConversationID(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("conversationId empty")
		}
		return s, nil
	}
	type payload struct {
		ConversationID string `json:"conversationId"`
	}
	p, err := decode.DecodeJSON[payload](data)
	if err != nil {
		return "", err
	}
	if p.ConversationID == "" {
		return "", fmt.Errorf("conversationId missing")
	}
	return p.ConversationID, nil
}
