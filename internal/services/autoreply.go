package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"evosync/internal/adapters/evolution"

	"github.com/rs/zerolog/log"
)

// ReplyDelayMs is the outbound delay passed to the gateway so the reply does
// not arrive implausibly fast.
const ReplyDelayMs = 1200

// DefaultDispatchTimeout bounds the completion plus gateway send of one
// auto-reply.
const DefaultDispatchTimeout = 30 * time.Second

// Completer produces one reply for one inbound text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText, model string, temperature float64) (string, error)
}

// TextSender sends a text message out through the gateway.
type TextSender interface {
	SendText(ctx context.Context, instance string, req evolution.SendTextRequest) (*evolution.SendTextResponse, error)
}

// AutoReplyDispatcher generates and sends an AI reply for inbound text
// messages on instances that have an active agent linked. It is best-effort
// and strictly downstream of the synchronizer: its failures are logged by
// the caller and never affect the webhook response.
type AutoReplyDispatcher struct {
	agents    *AgentResolver
	completer Completer
	gateway   TextSender
	stats     *StatsRecorder
	timeout   time.Duration
}

// NewAutoReplyDispatcher creates a new AutoReplyDispatcher.
func NewAutoReplyDispatcher(agents *AgentResolver, completer Completer, gateway TextSender, stats *StatsRecorder) (*AutoReplyDispatcher, error) {
	if agents == nil {
		return nil, fmt.Errorf("agent resolver cannot be nil for AutoReplyDispatcher")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer cannot be nil for AutoReplyDispatcher")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway cannot be nil for AutoReplyDispatcher")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats recorder cannot be nil for AutoReplyDispatcher")
	}
	return &AutoReplyDispatcher{
		agents:    agents,
		completer: completer,
		gateway:   gateway,
		stats:     stats,
		timeout:   DefaultDispatchTimeout,
	}, nil
}

// Dispatch runs the auto-reply chain for one inbound message event. Messages
// from the instance owner, messages without reply-eligible text, and
// instances without an active agent all no-op without error.
func (d *AutoReplyDispatcher) Dispatch(ctx context.Context, instance string, data *evolution.MessageData) error {
	if data.Key.FromMe {
		return nil
	}

	text := strings.TrimSpace(data.Message.ReplyText())
	if text == "" {
		return nil
	}

	agent, err := d.agents.Resolve(ctx, instance)
	if err != nil {
		return fmt.Errorf("resolve agent for %s: %w", instance, err)
	}
	if agent == nil {
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	reply, err := d.completer.Complete(dctx, agent.SystemPrompt, text, agent.Model, agent.Temperature)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Debug().Str("instance", instance).Str("remoteJid", data.Key.RemoteJid).Msg("Agent produced empty reply, nothing to send")
		return nil
	}

	_, err = d.gateway.SendText(dctx, instance, evolution.SendTextRequest{
		Number:      evolution.NumberFromJid(data.Key.RemoteJid),
		Text:        reply,
		Delay:       ReplyDelayMs,
		LinkPreview: true,
	})
	if err != nil {
		return fmt.Errorf("send reply to %s: %w", data.Key.RemoteJid, err)
	}

	if err := d.stats.RecordReply(ctx, instance, data.Key.RemoteJid); err != nil {
		return fmt.Errorf("record reply stat: %w", err)
	}

	log.Info().
		Str("instance", instance).
		Str("remoteJid", data.Key.RemoteJid).
		Str("model", agent.Model).
		Msg("Auto-reply dispatched")
	return nil
}
