package services

import (
	"context"
	"fmt"

	"evosync/internal/adapters/evolution"
	"evosync/internal/models"
	"evosync/internal/store"
)

// Stat direction and status values. Directions are upper-case by convention
// of the reporting dashboards that read these rows.
const (
	DirectionSend    = "SEND"
	DirectionReceive = "RECEIVE"

	StatDelivered = "DELIVERED"
	StatSent      = "SENT"
)

// StatsRecorder appends one MessageStat row per processed message event and
// one per outbound auto-reply. It runs independently of the entity
// synchronizer: a failed sync still gets its stat row.
type StatsRecorder struct {
	store store.Store
}

// NewStatsRecorder creates a new StatsRecorder.
func NewStatsRecorder(st store.Store) (*StatsRecorder, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil for StatsRecorder")
	}
	return &StatsRecorder{store: st}, nil
}

// RecordInbound writes the stat row for one inbound message event. Events
// without a content body are skipped, mirroring the synchronizer's gate.
func (r *StatsRecorder) RecordInbound(ctx context.Context, instance string, data *evolution.MessageData) error {
	if data.Message == nil {
		return nil
	}

	direction := DirectionReceive
	if data.Key.FromMe {
		direction = DirectionSend
	}

	return r.store.InsertStat(ctx, &models.MessageStat{
		Instance:  instance,
		RemoteJid: data.Key.RemoteJid,
		Direction: direction,
		Type:      data.Message.TypeTag(),
		Status:    StatDelivered,
	})
}

// RecordReply writes the stat row for one auto-generated outbound reply.
func (r *StatsRecorder) RecordReply(ctx context.Context, instance, remoteJid string) error {
	return r.store.InsertStat(ctx, &models.MessageStat{
		Instance:  instance,
		RemoteJid: remoteJid,
		Direction: DirectionSend,
		Type:      "conversation",
		Status:    StatSent,
	})
}
