package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"evosync/internal/adapters/evolution"
	"evosync/internal/models"
	"evosync/internal/queue"
	"evosync/internal/services"
	"evosync/internal/store"

	"github.com/rs/zerolog/log"
)

// WebhookHandler is the inbound boundary for gateway events. It persists the
// audit record first, acknowledges the gateway, and treats every downstream
// step as best-effort: returning an error to the gateway would only trigger
// redeliveries that no code path could resolve.
type WebhookHandler struct {
	store      store.Store
	sync       *services.SyncService
	stats      *services.StatsRecorder
	dispatcher *services.AutoReplyDispatcher
	gateway    *evolution.Client
	publisher  *queue.Publisher
}

// NewWebhookHandler creates a new WebhookHandler with its dependencies. The
// publisher may be nil when RabbitMQ fan-out is not configured.
func NewWebhookHandler(
	st store.Store,
	sync *services.SyncService,
	stats *services.StatsRecorder,
	dispatcher *services.AutoReplyDispatcher,
	gateway *evolution.Client,
	publisher *queue.Publisher,
) *WebhookHandler {
	if st == nil {
		log.Fatal().Msg("Store cannot be nil for WebhookHandler")
	}
	if sync == nil {
		log.Fatal().Msg("SyncService cannot be nil for WebhookHandler")
	}
	if stats == nil {
		log.Fatal().Msg("StatsRecorder cannot be nil for WebhookHandler")
	}
	if dispatcher == nil {
		log.Fatal().Msg("AutoReplyDispatcher cannot be nil for WebhookHandler")
	}
	return &WebhookHandler{
		store:      st,
		sync:       sync,
		stats:      stats,
		dispatcher: dispatcher,
		gateway:    gateway,
		publisher:  publisher,
	}
}

// Receive processes one inbound webhook call from the gateway.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read webhook request body")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	var payload evolution.EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// The raw body is still auditable; fall through with the fallbacks.
		log.Warn().Err(err).Msg("Webhook body is not valid event JSON")
	}

	instance := payload.Instance
	if instance == "" {
		instance = "unknown"
	}
	event := payload.Event
	if event == "" {
		event = "unknown"
	}

	audit := models.WebhookEvent{
		Instance: instance,
		Event:    event,
		Data:     string(body),
	}
	if err := h.store.CreateWebhookEvent(ctx, &audit); err != nil {
		log.Error().Err(err).Str("instance", instance).Str("event", event).Msg("Failed to store webhook event")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	log.Info().Str("instance", instance).Str("event", event).Msg("Received gateway event")

	if h.publisher != nil {
		if err := h.publisher.Publish(event, body); err != nil {
			log.Error().Err(err).Str("event", event).Msg("RabbitMQ fan-out failed")
		}
	}

	if event == evolution.EventMessagesUpsert {
		var data evolution.MessageData
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			log.Error().Err(err).Str("instance", instance).Msg("messages.upsert event has malformed data")
		} else {
			h.processMessage(r, instance, &data)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Webhook received"})
}

// processMessage runs the sync, stats and auto-reply chain for one message
// event. Every step has its own error boundary; the webhook response was
// already decided when the audit row landed.
func (h *WebhookHandler) processMessage(r *http.Request, instance string, data *evolution.MessageData) {
	ctx := r.Context()

	if data.Message == nil {
		log.Debug().Str("instance", instance).Str("remoteJid", data.Key.RemoteJid).Msg("Message event without body, audit record only")
		return
	}

	if err := h.stats.RecordInbound(ctx, instance, data); err != nil {
		log.Error().Err(err).Str("instance", instance).Str("keyID", data.Key.ID).Msg("Failed to record message stat")
	}

	if err := h.sync.ProcessMessage(ctx, instance, data); err != nil {
		log.Error().Err(err).Str("instance", instance).Str("keyID", data.Key.ID).Msg("Failed to synchronize message")
	}

	if err := h.dispatcher.Dispatch(ctx, instance, data); err != nil {
		log.Error().Err(err).Str("instance", instance).Str("remoteJid", data.Key.RemoteJid).Msg("Auto-reply dispatch failed")
	}
}

// GetConfig proxies the gateway's find-webhook call for one instance.
func (h *WebhookHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	instance := r.URL.Query().Get("instance")
	if instance == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Instance name is required"})
		return
	}

	cfg, err := h.gateway.FindWebhook(r.Context(), instance)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get webhook configuration"})
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// setConfigRequest is the body of the PUT /webhooks call.
type setConfigRequest struct {
	InstanceName    string   `json:"instanceName"`
	Enabled         bool     `json:"enabled"`
	URL             string   `json:"url"`
	Events          []string `json:"events,omitempty"`
	WebhookByEvents bool     `json:"webhookByEvents,omitempty"`
}

// SetConfig proxies the gateway's set-webhook call for one instance.
func (h *WebhookHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}
	if req.InstanceName == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Instance name is required"})
		return
	}

	cfg := evolution.WebhookConfig{
		Enabled:         req.Enabled,
		URL:             req.URL,
		Events:          req.Events,
		WebhookByEvents: req.WebhookByEvents,
	}
	if err := h.gateway.SetWebhook(r.Context(), req.InstanceName, cfg); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to set webhook configuration"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Webhook configured successfully"})
}

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
