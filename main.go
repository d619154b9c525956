package main

import (
	"fmt"
	"net/http"
	"time"

	"evosync/config"
	"evosync/internal/adapters/evolution"
	"evosync/internal/ai"
	"evosync/internal/db"
	"evosync/internal/handlers"
	"evosync/internal/models"
	"evosync/internal/queue"
	"evosync/internal/services"
	"evosync/internal/store"
	"evosync/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.InitLogger()

	log.Info().Msg("Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	gdb, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	if err := db.Migrate(gdb,
		&models.WebhookEvent{},
		&models.Contact{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageStat{},
		&models.Instance{},
		&models.AIAgent{},
	); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	st := store.NewGormStore(gdb)

	gateway, err := evolution.NewClient(cfg.EvolutionBaseURL, cfg.EvolutionAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Evolution client")
	}

	completer, err := ai.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize completion client")
	}

	syncService, err := services.NewSyncService(st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SyncService")
	}

	statsRecorder, err := services.NewStatsRecorder(st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize StatsRecorder")
	}

	agentResolver, err := services.NewAgentResolver(st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AgentResolver")
	}

	dispatcher, err := services.NewAutoReplyDispatcher(agentResolver, completer, gateway, statsRecorder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AutoReplyDispatcher")
	}

	publisher, err := queue.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.RabbitMQQueuePrefix)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to RabbitMQ, fan-out disabled")
		publisher = nil
	}
	defer publisher.Close()

	webhookHandler := handlers.NewWebhookHandler(st, syncService, statsRecorder, dispatcher, gateway, publisher)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "evosync webhook ingestion service is running.")
	}).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	}).Methods(http.MethodGet)
	router.HandleFunc(cfg.WebhookPath, webhookHandler.Receive).Methods(http.MethodPost)
	router.HandleFunc(cfg.WebhookPath, webhookHandler.GetConfig).Methods(http.MethodGet)
	router.HandleFunc(cfg.WebhookPath, webhookHandler.SetConfig).Methods(http.MethodPut)
	log.Info().Str("path", cfg.WebhookPath).Msg("Registered gateway webhook handler")

	chain := alice.New(
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("request_id", "Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", duration).
				Msg("Handled request")
		}),
	).Then(router)

	log.Info().Str("port", cfg.Port).Msgf("Server starting on port %s...", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, chain); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
