package relay

import "strings"

// Message is one chat event pushed by the relay over WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

type MessageJSON struct {
	UserID string `json:"user_id,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
}

// SenderName returns the display name, or "?" when the relay omitted it.
func (m *Message) SenderName() string {
	if m == nil || m.Sender == nil || *m.Sender == "" {
		return "?"
	}
	return *m.Sender
}

// Command returns the text after prefix when m was posted in room, e.g.
// "!robot e4" -> "e4". Messages from other rooms or without the prefix are ignored.
func (m *Message) Command(room, prefix string) (string, bool) {
	if m == nil || m.Room != room {
		return "", false
	}
	text := strings.TrimSpace(m.Msg)
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok || (rest != "" && rest[0] != ' ') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

type Config struct {
	Port              int    `json:"port"`
	PollingSpeed      int    `json:"polling_speed"`
	MessageRate       int    `json:"message_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	}
	return "disconnected"
}
