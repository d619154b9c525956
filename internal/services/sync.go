package services

import (
	"context"
	"fmt"
	"time"

	"evosync/internal/adapters/evolution"
	"evosync/internal/models"
	"evosync/internal/store"

	"github.com/rs/zerolog/log"
)

// MediaPlaceholder is the conversation preview used when a message carries no
// extractable text.
const MediaPlaceholder = "Media message"

// StatusDelivered is the fixed delivery status of inbound-derived message rows.
const StatusDelivered = "delivered"

// SyncService keeps Contact, Conversation and Message rows consistent with
// the stream of inbound message events.
type SyncService struct {
	store store.Store
}

// NewSyncService creates a new SyncService.
func NewSyncService(st store.Store) (*SyncService, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil for SyncService")
	}
	return &SyncService{store: st}, nil
}

// ProcessMessage upserts the contact and conversation for one inbound message
// event and appends the message row. Events without a content body are
// skipped entirely; only the audit record exists for those.
func (s *SyncService) ProcessMessage(ctx context.Context, instance string, data *evolution.MessageData) error {
	if data.Message == nil {
		log.Debug().Str("instance", instance).Str("remoteJid", data.Key.RemoteJid).Msg("Message event has no content body, skipping sync")
		return nil
	}

	now := time.Now()
	text := data.Message.Text()
	preview := text
	if preview == "" {
		preview = MediaPlaceholder
	}

	if !data.Key.FromMe {
		if _, err := s.store.UpsertContact(ctx, instance, data.Key.RemoteJid, data.PushName, now); err != nil {
			return fmt.Errorf("upsert contact %s: %w", data.Key.RemoteJid, err)
		}
	}

	conversation, err := s.store.UpsertConversation(ctx, instance, data.Key.RemoteJid, preview, now, data.Key.FromMe)
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", data.Key.RemoteJid, err)
	}

	message := models.Message{
		ConversationID: conversation.ID,
		KeyID:          data.Key.ID,
		FromMe:         data.Key.FromMe,
		Type:           data.Message.TypeTag(),
		Content:        text,
		Status:         StatusDelivered,
		Timestamp:      time.Unix(data.MessageTimestamp, 0),
	}

	inserted, err := s.store.InsertMessage(ctx, &message)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", data.Key.ID, err)
	}
	if !inserted {
		log.Info().
			Str("instance", instance).
			Str("keyID", data.Key.ID).
			Msg("Duplicate gateway message id, skipped message insert")
		return nil
	}

	log.Debug().
		Str("instance", instance).
		Str("remoteJid", data.Key.RemoteJid).
		Str("type", message.Type).
		Bool("fromMe", message.FromMe).
		Msg("Synchronized inbound message")
	return nil
}
