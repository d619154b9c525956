package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evosync/internal/adapters/evolution"
	"evosync/internal/models"
	"evosync/internal/services"
	"evosync/internal/store"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubCompleter struct {
	reply string
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt, userText, model string, temperature float64) (string, error) {
	s.calls++
	return s.reply, nil
}

type stubSender struct {
	calls []evolution.SendTextRequest
}

func (s *stubSender) SendText(ctx context.Context, instance string, req evolution.SendTextRequest) (*evolution.SendTextResponse, error) {
	s.calls = append(s.calls, req)
	return &evolution.SendTextResponse{Status: "PENDING"}, nil
}

type testEnv struct {
	db        *gorm.DB
	handler   *WebhookHandler
	completer *stubCompleter
	sender    *stubSender
}

func newTestEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()

	sync, err := services.NewSyncService(st)
	require.NoError(t, err)
	stats, err := services.NewStatsRecorder(st)
	require.NoError(t, err)
	resolver, err := services.NewAgentResolver(st)
	require.NoError(t, err)

	completer := &stubCompleter{reply: "How can I help?"}
	sender := &stubSender{}
	dispatcher, err := services.NewAutoReplyDispatcher(resolver, completer, sender, stats)
	require.NoError(t, err)

	return &testEnv{
		handler:   NewWebhookHandler(st, sync, stats, dispatcher, nil, nil),
		completer: completer,
		sender:    sender,
	}
}

func newGormEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.WebhookEvent{},
		&models.Contact{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageStat{},
		&models.Instance{},
		&models.AIAgent{},
	))

	env := newTestEnv(t, store.NewGormStore(gdb))
	env.db = gdb
	return env
}

func postWebhook(t *testing.T, env *testEnv, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.handler.Receive(rec, req)
	return rec
}

const helloUpsert = `{
	"instance": "main",
	"event": "messages.upsert",
	"data": {
		"key": {"remoteJid": "5511999@s.whatsapp.net", "fromMe": false, "id": "ABC1"},
		"pushName": "Alice",
		"message": {"conversation": "Hello"},
		"messageTimestamp": 1700000000
	}
}`

func TestReceiveMessagesUpsert(t *testing.T) {
	env := newGormEnv(t)

	rec := postWebhook(t, env, helloUpsert)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Webhook received", resp["message"])

	var audit models.WebhookEvent
	require.NoError(t, env.db.First(&audit).Error)
	require.Equal(t, "main", audit.Instance)
	require.Equal(t, "messages.upsert", audit.Event)
	require.JSONEq(t, helloUpsert, audit.Data)

	var contact models.Contact
	require.NoError(t, env.db.First(&contact).Error)
	require.Equal(t, "Alice", contact.PushName)

	var conv models.Conversation
	require.NoError(t, env.db.First(&conv).Error)
	require.Equal(t, "Hello", conv.LastMessage)
	require.Equal(t, 1, conv.UnreadCount)

	var msg models.Message
	require.NoError(t, env.db.First(&msg).Error)
	require.Equal(t, "ABC1", msg.KeyID)
	require.Equal(t, time.Unix(1700000000, 0).Unix(), msg.Timestamp.Unix())

	var stat models.MessageStat
	require.NoError(t, env.db.First(&stat).Error)
	require.Equal(t, services.DirectionReceive, stat.Direction)
	require.Equal(t, services.StatDelivered, stat.Status)

	// No agent configured for the instance, so nothing was sent.
	require.Zero(t, env.completer.calls)
	require.Empty(t, env.sender.calls)
}

func TestReceiveTriggersAutoReply(t *testing.T) {
	env := newGormEnv(t)

	agent := models.AIAgent{Name: "support", SystemPrompt: "be brief", Model: "gpt-4o-mini", Temperature: 0.5, IsActive: true}
	require.NoError(t, env.db.Create(&agent).Error)
	require.NoError(t, env.db.Create(&models.Instance{Name: "main", AIAgentID: &agent.ID}).Error)

	rec := postWebhook(t, env, helloUpsert)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, env.completer.calls)
	require.Len(t, env.sender.calls, 1)
	require.Equal(t, "5511999", env.sender.calls[0].Number)
	require.Equal(t, "How can I help?", env.sender.calls[0].Text)

	var stats []models.MessageStat
	require.NoError(t, env.db.Order("id").Find(&stats).Error)
	require.Len(t, stats, 2)
	require.Equal(t, services.DirectionReceive, stats[0].Direction)
	require.Equal(t, services.DirectionSend, stats[1].Direction)
	require.Equal(t, services.StatSent, stats[1].Status)
}

func TestReceiveOtherEventsAuditOnly(t *testing.T) {
	env := newGormEnv(t)

	rec := postWebhook(t, env, `{"instance":"main","event":"connection.update","data":{"state":"open"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var auditCount int64
	require.NoError(t, env.db.Model(&models.WebhookEvent{}).Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)

	for _, model := range []interface{}{&models.Contact{}, &models.Conversation{}, &models.Message{}, &models.MessageStat{}} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}

func TestReceiveUnknownFallbacks(t *testing.T) {
	env := newGormEnv(t)

	rec := postWebhook(t, env, `not json at all`)
	require.Equal(t, http.StatusOK, rec.Code)

	var audit models.WebhookEvent
	require.NoError(t, env.db.First(&audit).Error)
	require.Equal(t, "unknown", audit.Instance)
	require.Equal(t, "unknown", audit.Event)
	require.Equal(t, "not json at all", audit.Data)
}

func TestReceiveMalformedUpsertData(t *testing.T) {
	env := newGormEnv(t)

	rec := postWebhook(t, env, `{"instance":"main","event":"messages.upsert","data":"oops"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var auditCount int64
	require.NoError(t, env.db.Model(&models.WebhookEvent{}).Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)

	var msgCount int64
	require.NoError(t, env.db.Model(&models.Message{}).Count(&msgCount).Error)
	require.Zero(t, msgCount)
}

func TestReceiveBodylessMessageAuditOnly(t *testing.T) {
	env := newGormEnv(t)

	payload := `{
		"instance": "main",
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511999@s.whatsapp.net", "fromMe": false, "id": "GONE1"},
			"messageTimestamp": 1700000000
		}
	}`
	rec := postWebhook(t, env, payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var auditCount int64
	require.NoError(t, env.db.Model(&models.WebhookEvent{}).Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)

	for _, model := range []interface{}{&models.Contact{}, &models.Conversation{}, &models.Message{}, &models.MessageStat{}} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}

func TestReceiveRedeliveryKeepsOneMessage(t *testing.T) {
	env := newGormEnv(t)

	require.Equal(t, http.StatusOK, postWebhook(t, env, helloUpsert).Code)
	require.Equal(t, http.StatusOK, postWebhook(t, env, helloUpsert).Code)

	var auditCount int64
	require.NoError(t, env.db.Model(&models.WebhookEvent{}).Count(&auditCount).Error)
	require.EqualValues(t, 2, auditCount)

	var msgCount int64
	require.NoError(t, env.db.Model(&models.Message{}).Count(&msgCount).Error)
	require.EqualValues(t, 1, msgCount)
}

// failingStore rejects every write; reads answer empty.
type failingStore struct{}

func (failingStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return errors.New("disk full")
}

func (failingStore) UpsertContact(ctx context.Context, instance, remoteJid, pushName string, seenAt time.Time) (*models.Contact, error) {
	return nil, errors.New("disk full")
}

func (failingStore) UpsertConversation(ctx context.Context, instance, remoteJid, preview string, at time.Time, fromMe bool) (*models.Conversation, error) {
	return nil, errors.New("disk full")
}

func (failingStore) InsertMessage(ctx context.Context, message *models.Message) (bool, error) {
	return false, errors.New("disk full")
}

func (failingStore) InsertStat(ctx context.Context, stat *models.MessageStat) error {
	return errors.New("disk full")
}

func (failingStore) ActiveAgentForInstance(ctx context.Context, instance string) (*models.AIAgent, error) {
	return nil, nil
}

func TestReceiveAuditFailureReturns500(t *testing.T) {
	env := newTestEnv(t, failingStore{})

	rec := postWebhook(t, env, helloUpsert)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Internal server error", resp["error"])

	// Nothing downstream ran.
	require.Zero(t, env.completer.calls)
	require.Empty(t, env.sender.calls)
}

func gatewayBackedHandler(t *testing.T, gatewayURL string) *WebhookHandler {
	t.Helper()
	env := newGormEnv(t)
	gateway, err := evolution.NewClient(gatewayURL, "secret")
	require.NoError(t, err)
	env.handler.gateway = gateway
	return env.handler
}

func TestGetConfigProxiesGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webhook/find/main", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(evolution.WebhookConfig{Enabled: true, URL: "https://sync.example.com/webhooks"})
	}))
	defer srv.Close()

	h := gatewayBackedHandler(t, srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/webhooks?instance=main", nil)
	rec := httptest.NewRecorder()
	h.GetConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cfg evolution.WebhookConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.True(t, cfg.Enabled)
	require.Equal(t, "https://sync.example.com/webhooks", cfg.URL)
}

func TestGetConfigRequiresInstance(t *testing.T) {
	h := gatewayBackedHandler(t, "http://gateway.invalid")

	req := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
	rec := httptest.NewRecorder()
	h.GetConfig(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetConfigProxiesGateway(t *testing.T) {
	var gotCfg evolution.WebhookConfig
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webhook/instance/main", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCfg))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := gatewayBackedHandler(t, srv.URL)

	body := `{"instanceName":"main","enabled":true,"url":"https://sync.example.com/webhooks","events":["MESSAGES_UPSERT"]}`
	req := httptest.NewRequest(http.MethodPut, "/webhooks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gotCfg.Enabled)
	require.Equal(t, []string{"MESSAGES_UPSERT"}, gotCfg.Events)
}

func TestSetConfigRequiresInstanceName(t *testing.T) {
	h := gatewayBackedHandler(t, "http://gateway.invalid")

	req := httptest.NewRequest(http.MethodPut, "/webhooks", strings.NewReader(`{"enabled":true,"url":"x"}`))
	rec := httptest.NewRecorder()
	h.SetConfig(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
