package models

import (
	"time"
)

// WebhookEvent is the append-only audit record of every inbound gateway
// payload. It is written before any type-specific handling so that malformed
// or unsupported events are never silently lost. Rows are never updated or
// deleted.
type WebhookEvent struct {
	ID         uint      `gorm:"primaryKey"`
	Instance   string    `gorm:"index;comment:Name of the gateway instance that emitted the event"`
	Event      string    `gorm:"index;comment:Gateway event type, e.g. messages.upsert"`
	Data       string    `gorm:"type:text;comment:Raw JSON body as received"`
	ReceivedAt time.Time `gorm:"autoCreateTime"`
}

// Contact is a messaging counterparty scoped to one instance. At most one row
// exists per (instance, remote_jid); concurrent inbound events for the same
// party converge onto it via upsert.
type Contact struct {
	ID         uint   `gorm:"primaryKey"`
	Instance   string `gorm:"uniqueIndex:ux_contacts_instance_jid,priority:1"`
	RemoteJid  string `gorm:"uniqueIndex:ux_contacts_instance_jid,priority:2"`
	Name       string
	PushName   string `gorm:"comment:Name the remote party broadcasts"`
	Phone      string
	LastSeenAt time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// Conversation is the message thread with one counterparty within one
// instance, unique per (instance, remote_jid). UnreadCount is only ever
// incremented here; resetting it is a UI concern outside this service.
type Conversation struct {
	ID            uint   `gorm:"primaryKey"`
	Instance      string `gorm:"uniqueIndex:ux_conversations_instance_jid,priority:1"`
	RemoteJid     string `gorm:"uniqueIndex:ux_conversations_instance_jid,priority:2"`
	ContactID     uint   `gorm:"index"`
	LastMessageAt time.Time
	LastMessage   string    `gorm:"type:text;comment:Preview of the most recent message"`
	UnreadCount   int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Message is an immutable record of one exchanged message. The unique index
// on (conversation_id, key_id) makes inserts idempotent under gateway
// redelivery of the same event.
type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"uniqueIndex:ux_messages_conversation_key,priority:1"`
	KeyID          string `gorm:"uniqueIndex:ux_messages_conversation_key,priority:2;comment:Gateway-assigned message key id"`
	FromMe         bool
	Type           string `gorm:"comment:Content variant tag, e.g. conversation, imageMessage"`
	Content        string `gorm:"type:text"`
	Status         string
	Timestamp      time.Time `gorm:"comment:Gateway message timestamp"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// MessageStat is a denormalized append-only counter row used for dashboard
// reporting, one per processed message plus one per auto-generated reply.
type MessageStat struct {
	ID        uint   `gorm:"primaryKey"`
	Instance  string `gorm:"index"`
	RemoteJid string
	Direction string `gorm:"index;comment:SEND or RECEIVE"`
	Type      string
	Status    string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Instance is the per-gateway-session configuration row. This service only
// reads it to resolve a linked AI agent; lifecycle management lives in the
// admin application.
type Instance struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	AIAgentID *uint
	AIAgent   *AIAgent
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AIAgent holds the completion settings for an instance's auto-reply agent.
// Read-only from this service's point of view.
type AIAgent struct {
	ID           uint `gorm:"primaryKey"`
	Name         string
	SystemPrompt string `gorm:"type:text"`
	Model        string
	Temperature  float64
	IsActive     bool      `gorm:"default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
