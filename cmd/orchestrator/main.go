// cmd/orchestrator/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"convocore/internal/catalog"
	"convocore/internal/common/config"
	"convocore/internal/common/database"
	"convocore/internal/common/logger"
	"convocore/internal/common/observability"
	"convocore/internal/dispatch"
	"convocore/internal/flow"
	"convocore/internal/ingress"
	"convocore/internal/intent"
	"convocore/internal/models"
	"convocore/internal/notify"
	"convocore/internal/provider"
	"convocore/internal/provider/ai"
	providerdata "convocore/internal/provider/data"
	"convocore/internal/provider/messaging"
	"convocore/internal/session"
	"convocore/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// embedderAdapter lets the intent engine use whichever AI gateway backs
// embeddings without pulling provider plumbing into the engine.
type embedderAdapter struct {
	ai      provider.AIProvider
	timeout time.Duration
}

func (a *embedderAdapter) Embed(text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.ai.Embed(ctx, text)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting conversation orchestrator...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("orchestrator")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis (session store) with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	sessions := session.NewRedisStore(rdb.GetClient())

	// --- Init PostgreSQL (catalog + business data) with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Host != "" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Tenant catalog: seed registry file or provisioning database ---
	var catalogStore catalog.Store
	if cfg.Catalog.RegistryPath != "" {
		seed, err := registry.LoadSeed(cfg.Catalog.RegistryPath)
		if err != nil {
			zapLog.Fatal("seed registry load failed",
				zap.String("path", cfg.Catalog.RegistryPath),
				zap.Error(err),
			)
		}
		catalogStore = registry.NewStore(seed)
		zapLog.Info("Tenant catalog loaded from seed registry",
			zap.String("path", cfg.Catalog.RegistryPath),
			zap.String("registryVersion", seed.Version),
			zap.Int("tenants", len(seed.Tenants)),
		)
	} else {
		catalogStore = catalog.NewPostgresStore(pg.GetDB())
		zapLog.Info("Tenant catalog backed by PostgreSQL")
	}
	catalogs := catalog.NewCache(catalogStore, config.GetSeconds(cfg.Catalog.CacheTTL), log)

	// --- Provider gateways ---
	providers := provider.NewRegistry()

	var openAI *ai.OpenAIProvider
	if cfg.Providers.OpenAI.APIKey != "" {
		openAI = ai.NewOpenAIProvider(&ai.OpenAIConfig{
			APIKey:    cfg.Providers.OpenAI.APIKey,
			ChatModel: cfg.Providers.OpenAI.Model,
		})
		providers.RegisterAI("openai", openAI)
		zapLog.Info("OpenAI gateway registered")
	}
	if cfg.Providers.GenAI.BaseURL != "" {
		providers.RegisterAI("genai", ai.NewGenAIProvider(&ai.GenAIConfig{
			BaseURL: cfg.Providers.GenAI.BaseURL,
			APIKey:  cfg.Providers.GenAI.APIKey,
			Timeout: config.GetDuration(cfg.Providers.GenAI.Timeout),
		}))
		zapLog.Info("GenAI gateway registered", zap.String("baseURL", cfg.Providers.GenAI.BaseURL))
	}

	if pg != nil {
		providers.RegisterData("postgres", providerdata.NewPostgresSource(pg.GetDB()))
	}

	// --- Init Elasticsearch (document data source) with retry ---
	if cfg.Database.Elasticsearch.GetURL() != "" {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		providers.RegisterData("elasticsearch", providerdata.NewElasticsearchSource(esClient.Client, "tenant_documents"))
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Providers.Messaging.WebhookBaseURL != "" {
		providers.RegisterMessaging("http", messaging.NewHTTPProvider(&messaging.HTTPConfig{
			BaseURL: cfg.Providers.Messaging.WebhookBaseURL,
			APIKey:  cfg.Providers.Messaging.APIKey,
			Timeout: config.GetDuration(cfg.Providers.Messaging.Timeout),
		}))
		zapLog.Info("HTTP messaging gateway registered")
	}
	if cfg.Providers.AWS.SNS.Enabled {
		snsProvider, err := messaging.NewSNSProvider(ctx, cfg.Providers.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns provider init failed", zap.Error(err))
		}
		providers.RegisterMessaging("sns", snsProvider)
		zapLog.Info("SNS messaging gateway registered", zap.String("region", cfg.Providers.AWS.Region))
	}

	// --- Escalation notifier ---
	var notifier flow.EscalationNotifier
	if cfg.Providers.AWS.SES.Enabled {
		sesNotifier, err := notify.NewSESNotifier(ctx, cfg.Providers.AWS.Region, cfg.Providers.AWS.SES.FromEmail, log)
		if err != nil {
			zapLog.Fatal("ses notifier init failed", zap.Error(err))
		}
		notifier = sesNotifier
		zapLog.Info("SES escalation notifier registered", zap.String("fromEmail", cfg.Providers.AWS.SES.FromEmail))
	}

	// --- Intent engine ---
	var embedder intent.Embedder
	if openAI != nil {
		embedder = &embedderAdapter{ai: openAI, timeout: config.GetDuration(cfg.Providers.OpenAI.Timeout)}
	}
	engine := intent.NewEngine(embedder, log)

	// --- Flow manager ---
	manager := flow.NewManager(catalogs, sessions, engine, providers, notifier, flow.Options{
		AITimeout:        config.GetDuration(cfg.Providers.OpenAI.Timeout),
		DataTimeout:      config.GetDuration(cfg.Server.RequestTimeout) / 2,
		MessagingTimeout: config.GetDuration(cfg.Providers.Messaging.Timeout),
		SessionTTL:       config.GetSeconds(cfg.Session.InactivityWindow),
		MemoryWindow:     cfg.Session.MemoryWindow,
	}, log)

	// --- Dispatcher: serializes turns per conversation ---
	requestTimeout := config.GetDuration(cfg.Server.RequestTimeout)
	dispatcher := dispatch.NewDispatcher(cfg.Dispatch.Lanes, cfg.Dispatch.QueueDepth,
		func(ctx context.Context, msg *models.InboundMessage) {
			turnCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			if _, err := manager.HandleMessage(turnCtx, msg); err != nil {
				log.Error("turn processing failed", map[string]interface{}{
					"tenantId":      msg.TenantID,
					"channelUserId": msg.ChannelUserID,
					"error":         err.Error(),
				})
			}
		}, log)

	runCtx, stopWorkers := context.WithCancel(ctx)
	dispatcher.Start(runCtx)
	zapLog.Info("Dispatcher started",
		zap.Int("lanes", cfg.Dispatch.Lanes),
		zap.Int("queueDepth", cfg.Dispatch.QueueDepth),
	)

	// --- HTTP ingress + operational endpoints ---
	mux := http.NewServeMux()
	ingress.NewServer(dispatcher, manager, log).Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if err := rdb.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if pg != nil {
			if err := pg.Ping(r.Context()); err != nil {
				status["status"] = "degraded"
				status["postgres"] = err.Error()
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.ListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown: stop intake first, then drain the lanes ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown error", zap.Error(err))
	}

	dispatcher.Stop()
	stopWorkers()

	zapLog.Info("Orchestrator stopped cleanly")
}
