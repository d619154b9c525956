package evolution

import (
	"encoding/json"
	"strings"
)

// EventPayload is the envelope the gateway posts to the webhook endpoint.
// Data is kept raw here because its shape depends on the event type; only
// messages.upsert payloads are decoded further by this service.
type EventPayload struct {
	Instance    string          `json:"instance"`
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
	Destination string          `json:"destination,omitempty"`
	DateTime    string          `json:"date_time,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	ServerURL   string          `json:"server_url,omitempty"`
}

// MessageKey is the gateway's addressing key for one message.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// ExtendedTextMessage carries text sent with a link preview or quote.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// ImageMessage carries an image; only the caption is of interest here.
type ImageMessage struct {
	Caption string `json:"caption,omitempty"`
}

// MessageContent is the one-of-many content variant of a message. Exactly one
// of the fields is expected to be present; which one determines the message
// type tag.
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *ImageMessage        `json:"imageMessage,omitempty"`
}

// MessageData is the data field of a messages.upsert event.
type MessageData struct {
	Key              MessageKey      `json:"key"`
	PushName         string          `json:"pushName,omitempty"`
	Message          *MessageContent `json:"message,omitempty"`
	MessageTimestamp int64           `json:"messageTimestamp"`
}

// Text extracts plain text content in priority order: direct body, extended
// text, image caption. Empty string when the message has no extractable text.
func (m *MessageContent) Text() string {
	if m == nil {
		return ""
	}
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	if m.ImageMessage != nil && m.ImageMessage.Caption != "" {
		return m.ImageMessage.Caption
	}
	return ""
}

// ReplyText is the text an auto-reply may respond to. Captions deliberately
// do not count: a bare image is not a prompt.
func (m *MessageContent) ReplyText() string {
	if m == nil {
		return ""
	}
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil {
		return m.ExtendedTextMessage.Text
	}
	return ""
}

// TypeTag names the first present content variant.
func (m *MessageContent) TypeTag() string {
	switch {
	case m == nil:
		return "unknown"
	case m.Conversation != "":
		return "conversation"
	case m.ExtendedTextMessage != nil:
		return "extendedTextMessage"
	case m.ImageMessage != nil:
		return "imageMessage"
	default:
		return "unknown"
	}
}

// NumberFromJid strips the messaging-network domain suffix from a JID,
// e.g. "5511999@s.whatsapp.net" -> "5511999".
func NumberFromJid(jid string) string {
	if i := strings.Index(jid, "@"); i >= 0 {
		return jid[:i]
	}
	return jid
}
