package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nchat/trustplane/internal/abuse/raid"
	"github.com/nchat/trustplane/internal/abuse/spam"
	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/auth"
	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/config"
	"github.com/nchat/trustplane/internal/events"
	"github.com/nchat/trustplane/internal/identity"
	"github.com/nchat/trustplane/internal/metrics"
	"github.com/nchat/trustplane/internal/opsfeed"
	"github.com/nchat/trustplane/internal/persistence"
	"github.com/nchat/trustplane/internal/persistence/pgstore"
	"github.com/nchat/trustplane/internal/persistence/redisstore"
	"github.com/nchat/trustplane/internal/platform"
	"github.com/nchat/trustplane/internal/privacy"
	"github.com/nchat/trustplane/internal/quota"
	"github.com/nchat/trustplane/internal/sanitize"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Get()
	logger := slog.Default().With("component", "cmd.server")

	p := buildPlatform(cfg, logger)

	store, err := buildPersistenceStore(cfg)
	if err != nil {
		logger.Warn("persistence backend unavailable, running without snapshots", "error", err)
	}
	if store != nil {
		if err := persistence.SyncIn(context.Background(), store, exporters(p)); err != nil {
			logger.Warn("failed to restore snapshots", "error", err)
		}
		go periodicSync(store, p, cfg, logger)
	}

	go p.Feed.Run()

	router := newRouter(p, cfg)

	srv := &http.Server{
		Addr:         cfg.Server.Interface + ":" + cfg.GetPort(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("trust plane listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, p, store, cfg, logger)
}

// buildPlatform wires every trust-plane subsystem together, reading
// defaults from cfg.
func buildPlatform(cfg *config.Config, logger *slog.Logger) *platform.Platform {
	c := clock.Real{}

	appStore := apps.NewStore(c)
	authMgr := auth.NewManager(c, auth.Config{
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	limiter := quota.NewLimiterWithClock(map[quota.Action]quota.Config{
		quota.ActionMessage:    {Limit: cfg.Quota.DefaultLimit, WindowMs: cfg.Quota.DefaultWindowMs, BurstLimit: cfg.Quota.DefaultBurstLimit},
		quota.ActionReaction:   {Limit: cfg.Quota.DefaultLimit * 2, WindowMs: cfg.Quota.DefaultWindowMs},
		quota.ActionAPICall:    {Limit: cfg.Quota.DefaultLimit, WindowMs: cfg.Quota.DefaultWindowMs},
		quota.ActionFileUpload: {Limit: cfg.Quota.DefaultLimit / 6, WindowMs: cfg.Quota.DefaultWindowMs},
	}, c)
	spamDetector := spam.NewDetectorWithClock(spam.Config{}, c)
	raidProtector := raid.NewProtectorWithClock(raid.Config{
		VelocityThreshold:         cfg.Raid.VelocityThreshold,
		VelocityCriticalThreshold: cfg.Raid.VelocityCriticalThreshold,
		NewAccountAgeDays:         cfg.Raid.NewAccountAgeDays,
		NewAccountThreshold:       cfg.Raid.NewAccountThreshold,
		AutoLockdownEnabled:       cfg.Raid.AutoLockdownEnabled,
		AutoLockdownLevel:         raid.LockdownLevel(cfg.Raid.AutoLockdownLevel),
		AutoLockdownDuration:      time.Duration(cfg.Raid.AutoLockdownDurationSec) * time.Second,
	}, c)
	registry := events.NewRegistry()
	ledger := events.NewLedger()
	privacyMgr := privacy.NewManagerWithClock(c)
	sanitizer := sanitize.New(sanitize.DefaultConfig(cfg.Privacy.HashSalt))
	feed := opsfeed.NewHub(32)
	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	webhookClient := buildWebhookClient(cfg, logger)
	secretLookup := func(appID string) (string, bool) {
		app := appStore.GetApp(appID)
		if app == nil {
			return "", false
		}
		return app.WebhookSigningSecret, true
	}
	dispatcher := events.NewDispatcher(registry, ledger, webhookClient, secretLookup, c, events.DispatcherConfig{
		MaxRetries:        cfg.Dispatch.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay(),
		Timeout:           cfg.DispatchTimeout(),
	}, reg)

	return &platform.Platform{
		Apps:       appStore,
		Auth:       authMgr,
		Limiter:    limiter,
		Spam:       spamDetector,
		Raid:       raidProtector,
		Events:     registry,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Privacy:    privacyMgr,
		Sanitizer:  sanitizer,
		Feed:       feed,
		Metrics:    reg,
		Logger:     logger,
	}
}

// buildWebhookClient returns an mTLS-capable client bound to the
// deployment's own SPIFFE identity when internal/identity is configured,
// falling back to a plain HTTP client otherwise.
func buildWebhookClient(cfg *config.Config, logger *slog.Logger) events.WebhookClient {
	httpClient := &http.Client{Timeout: cfg.DispatchTimeout()}
	if cfg.Identity.Enabled {
		wi, err := identity.Connect(cfg.Identity.SocketPath)
		if err != nil {
			logger.Warn("SPIFFE identity unavailable, dispatching webhooks without mTLS", "error", err)
		} else if c, err := wi.HTTPClient(cfg.DispatchTimeout()); err == nil {
			httpClient = c
		}
	}
	return func(ctx context.Context, req events.WebhookRequest) (events.WebhookResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, nil)
		if err != nil {
			return events.WebhookResponse{}, err
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}
		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return events.WebhookResponse{}, err
		}
		defer resp.Body.Close()
		return events.WebhookResponse{StatusCode: resp.StatusCode}, nil
	}
}

func buildPersistenceStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.Persistence.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Persistence.RedisAddr})
		return redisstore.New(client, "trustplane:snapshot:"), nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Persistence.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return pgstore.New(db, cfg.Persistence.SnapshotTable), nil
	default:
		return nil, nil
	}
}

func exporters(p *platform.Platform) map[string]persistence.Exporter {
	return map[string]persistence.Exporter{
		"apps":    p.Apps,
		"tokens":  p.Auth,
		"quota":   p.Limiter,
		"events":  p.Events,
		"privacy": p.Privacy,
	}
}

func periodicSync(store persistence.Store, p *platform.Platform, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.Persistence.SyncIntervalSec) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := persistence.SyncOut(context.Background(), store, exporters(p)); err != nil {
			logger.Warn("periodic snapshot sync failed", "error", err)
		}
	}
}

func waitForShutdown(srv *http.Server, p *platform.Platform, store persistence.Store, cfg *config.Config, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if store != nil {
		if err := persistence.SyncOut(ctx, store, exporters(p)); err != nil {
			logger.Warn("final snapshot sync failed", "error", err)
		}
	}
	p.Feed.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// newRouter builds the admin/API surface: manifest submission and app
// lifecycle, installation management, token issuance/introspection,
// webhook subscription CRUD, rate-limit inspection, raid/lockdown status,
// and privacy settings CRUD.
//
// Grounded on the teacher's internal/api/server.go — gorilla/mux router,
// a CORS middleware, one HandleFunc per resource, json.Decoder/Encoder
// request/response bodies — generalized from escrow/reputation/ghostpool
// resources to the trust plane's own.
func newRouter(p *platform.Platform, cfg *config.Config) http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware(cfg.Server.CORSAllowOrigins))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/apps", handleRegisterApp(p)).Methods(http.MethodPost)
	r.HandleFunc("/apps", handleListApps(p)).Methods(http.MethodGet)
	r.HandleFunc("/apps/{id}", handleGetApp(p)).Methods(http.MethodGet)
	r.HandleFunc("/apps/{id}/approve", handleApproveApp(p)).Methods(http.MethodPost)
	r.HandleFunc("/apps/{id}/reject", handleRejectApp(p)).Methods(http.MethodPost)
	r.HandleFunc("/apps/{id}/suspend", handleSuspendApp(p)).Methods(http.MethodPost)
	r.HandleFunc("/apps/{id}/install", handleInstallApp(p)).Methods(http.MethodPost)

	r.HandleFunc("/installations/{id}/enable", handleEnableInstallation(p)).Methods(http.MethodPost)
	r.HandleFunc("/installations/{id}/disable", handleDisableInstallation(p)).Methods(http.MethodPost)
	r.HandleFunc("/installations/{id}", handleUninstallApp(p)).Methods(http.MethodDelete)

	r.HandleFunc("/oauth/token", handleIssueToken(p)).Methods(http.MethodPost)
	r.HandleFunc("/oauth/token/refresh", handleRefreshToken(p)).Methods(http.MethodPost)
	r.HandleFunc("/oauth/token/introspect", handleIntrospectToken(p)).Methods(http.MethodPost)
	r.HandleFunc("/oauth/token/revoke", handleRevokeToken(p)).Methods(http.MethodPost)

	r.HandleFunc("/webhooks", handleSubscribeWebhook(p)).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/{id}", handleGetWebhook(p)).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/{id}", handleUnsubscribeWebhook(p)).Methods(http.MethodDelete)

	r.HandleFunc("/ratelimits/{action}/{identifier}", handleRateLimitStatus(p)).Methods(http.MethodGet)

	r.HandleFunc("/spam/rules", handleAddSpamRule(p)).Methods(http.MethodPost)
	r.HandleFunc("/spam/analyze", handleAnalyzeSpam(p)).Methods(http.MethodPost)

	r.HandleFunc("/raid/lockdown/{key}", handleGetLockdown(p)).Methods(http.MethodGet)
	r.HandleFunc("/raid/lockdown/{key}", handleSetLockdown(p)).Methods(http.MethodPost)

	r.HandleFunc("/privacy/{userId}", handleGetPrivacy(p)).Methods(http.MethodGet)
	r.HandleFunc("/privacy/{userId}", handleUpdatePrivacy(p)).Methods(http.MethodPut)
	r.HandleFunc("/privacy/{userId}/audit", handlePrivacyAudit(p)).Methods(http.MethodGet)

	r.HandleFunc("/admin/ops/feed", opsfeed.Handler(p.Feed)).Methods(http.MethodGet)

	return r
}

func corsMiddleware(allowOrigins []string) mux.MiddlewareFunc {
	origin := "*"
	if len(allowOrigins) > 0 {
		origin = allowOrigins[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
