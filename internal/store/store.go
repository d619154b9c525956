package store

import (
	"context"
	"errors"
	"time"

	"evosync/internal/adapters/evolution"
	"evosync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence port of the ingestion pipeline. Handlers and
// services depend on this interface, never on a shared DB handle.
type Store interface {
	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	UpsertContact(ctx context.Context, instance, remoteJid, pushName string, seenAt time.Time) (*models.Contact, error)
	UpsertConversation(ctx context.Context, instance, remoteJid, preview string, at time.Time, fromMe bool) (*models.Conversation, error)
	InsertMessage(ctx context.Context, message *models.Message) (bool, error)
	InsertStat(ctx context.Context, stat *models.MessageStat) error
	ActiveAgentForInstance(ctx context.Context, instance string) (*models.AIAgent, error)
}

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by the given gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateWebhookEvent appends one audit row. No update path exists.
func (s *GormStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// UpsertContact inserts or updates the contact keyed by (instance, remoteJid).
// On create, name and phone are seeded from the JID's local part; on update
// only push-name and last-seen are refreshed.
func (s *GormStore) UpsertContact(ctx context.Context, instance, remoteJid, pushName string, seenAt time.Time) (*models.Contact, error) {
	local := evolution.NumberFromJid(remoteJid)
	contact := models.Contact{
		Instance:   instance,
		RemoteJid:  remoteJid,
		Name:       local,
		PushName:   pushName,
		Phone:      local,
		LastSeenAt: seenAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance"}, {Name: "remote_jid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"push_name":    pushName,
			"last_seen_at": seenAt,
			"updated_at":   time.Now(),
		}),
	}).Create(&contact).Error
	if err != nil {
		return nil, err
	}

	// The driver does not report the surviving row's ID on conflict, so read
	// it back by key.
	var saved models.Contact
	if err := s.db.WithContext(ctx).Where("instance = ? AND remote_jid = ?", instance, remoteJid).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpsertConversation inserts or updates the conversation keyed by
// (instance, remoteJid) and links it to the contact of the same key,
// creating that contact when it does not exist yet (connect-or-create).
// The unread counter is incremented as a single SQL expression so that
// concurrent inbound events cannot lose updates.
func (s *GormStore) UpsertConversation(ctx context.Context, instance, remoteJid, preview string, at time.Time, fromMe bool) (*models.Conversation, error) {
	contact, err := s.connectOrCreateContact(ctx, instance, remoteJid, at)
	if err != nil {
		return nil, err
	}

	increment := 0
	if !fromMe {
		increment = 1
	}

	conversation := models.Conversation{
		Instance:      instance,
		RemoteJid:     remoteJid,
		ContactID:     contact.ID,
		LastMessageAt: at,
		LastMessage:   preview,
		UnreadCount:   increment,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance"}, {Name: "remote_jid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_message_at": at,
			"last_message":    preview,
			"unread_count":    gorm.Expr("unread_count + ?", increment),
			"updated_at":      time.Now(),
		}),
	}).Create(&conversation).Error
	if err != nil {
		return nil, err
	}

	var saved models.Conversation
	if err := s.db.WithContext(ctx).Where("instance = ? AND remote_jid = ?", instance, remoteJid).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// connectOrCreateContact resolves the contact row for a conversation link
// without clobbering a contact that an earlier upsert already wrote.
func (s *GormStore) connectOrCreateContact(ctx context.Context, instance, remoteJid string, seenAt time.Time) (*models.Contact, error) {
	local := evolution.NumberFromJid(remoteJid)

	var contact models.Contact
	err := s.db.WithContext(ctx).
		Where(models.Contact{Instance: instance, RemoteJid: remoteJid}).
		Attrs(models.Contact{Name: local, Phone: local, LastSeenAt: seenAt}).
		FirstOrCreate(&contact).Error
	if err == nil {
		return &contact, nil
	}

	// A concurrent insert may have won the race on the unique index; the row
	// exists now, so a plain lookup settles it.
	var existing models.Contact
	if findErr := s.db.WithContext(ctx).Where("instance = ? AND remote_jid = ?", instance, remoteJid).First(&existing).Error; findErr == nil {
		return &existing, nil
	}
	return nil, err
}

// InsertMessage appends one message row. Redelivered events carry the same
// gateway key id and are dropped by the unique index; the return value
// reports whether a row was actually written.
func (s *GormStore) InsertMessage(ctx context.Context, message *models.Message) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "key_id"}},
		DoNothing: true,
	}).Create(message)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertStat appends one reporting row.
func (s *GormStore) InsertStat(ctx context.Context, stat *models.MessageStat) error {
	return s.db.WithContext(ctx).Create(stat).Error
}

// ActiveAgentForInstance resolves the AI agent linked to the named instance.
// It returns nil without error when the instance is unknown, has no linked
// agent, or the agent is inactive -- all normal no-op conditions for the
// auto-reply dispatcher.
func (s *GormStore) ActiveAgentForInstance(ctx context.Context, instance string) (*models.AIAgent, error) {
	var inst models.Instance
	err := s.db.WithContext(ctx).Preload("AIAgent").Where("name = ?", instance).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if inst.AIAgent == nil || !inst.AIAgent.IsActive {
		return nil, nil
	}
	return inst.AIAgent, nil
}
