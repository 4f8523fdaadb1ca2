package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/netrixlabs/keygate/internal/adreward"
	"github.com/netrixlabs/keygate/internal/api"
	"github.com/netrixlabs/keygate/internal/audit"
	"github.com/netrixlabs/keygate/internal/auth"
	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/config"
	"github.com/netrixlabs/keygate/internal/data"
	"github.com/netrixlabs/keygate/internal/entitlement"
	"github.com/netrixlabs/keygate/internal/events"
	"github.com/netrixlabs/keygate/internal/keys"
	"github.com/netrixlabs/keygate/internal/metrics"
	"github.com/netrixlabs/keygate/internal/middleware"
	"github.com/netrixlabs/keygate/internal/ratelimit"
	"github.com/netrixlabs/keygate/internal/settings"
	"github.com/netrixlabs/keygate/internal/tokens"
	"github.com/netrixlabs/keygate/internal/users"
	"github.com/netrixlabs/keygate/internal/verify"
)

const serviceName = "keygate"

func main() {
	cfgPath := os.Getenv("KEYGATE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}
	if cfg.Admin.PINHash == "" {
		log.Fatalf("ADMIN_PIN_HASH (or admin.pin_hash) is required; generate one with cmd/pinhash")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	holder := config.NewHolder(cfg)
	holder.StartWatcher(ctx, cfgPath)

	// Entitlement store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis ping error: %v", err)
	}

	// Postgres is optional wiring: without it the service runs with user
	// bookkeeping and audit disabled (dev mode).
	var db *sql.DB
	var userRepo users.Repository
	var auditService *audit.Service
	if cfg.Postgres.DSN != "" {
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("DB open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("DB ping error: %v", err)
		}
		userRepo = data.UserModel{DB: db}
		auditService = audit.NewService(db)
	} else {
		log.Printf("Warning: POSTGRES_DSN not set, user records and audit trail disabled")
	}

	// NATS event bus, optional like the rest of the glue
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			log.Printf("Warning: NATS connect failed: %v. Lifecycle events disabled.", err)
		} else {
			publisher = events.NewPublisher(nc, cfg.NATS.Subject, cfg.NATS.MaxRetries)
			defer nc.Close()
		}
	}

	// Components
	registry := keys.NewRegistry(rdb)
	tracker, err := entitlement.NewTracker(rdb, cfg.Cache.SnapshotPath)
	if err != nil {
		log.Fatalf("Entitlement cache init error: %v", err)
	}
	engine := adreward.NewEngine(rdb)
	gate := bans.NewGate(rdb)
	settingsStore := settings.NewStore(rdb)
	userService := users.NewService(userRepo, gate)
	checker := verify.NewTelegramChecker()

	tokenMgr := tokens.NewManager(cfg.Admin.SigningKey)
	lockout := auth.NewLockout(rdb)
	blacklist := auth.NewRedisBlacklist(rdb)
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimit.Salt)
	collector := metrics.NewCollector()

	jwtAuth := middleware.NewJWTAuth(tokenMgr, blacklist)

	router := api.NewRouter(api.Deps{
		Session: &api.SessionHandler{
			Users:    userService,
			Tracker:  tracker,
			Gate:     gate,
			Settings: settingsStore,
			Verifier: checker,
		},
		Keys: &api.KeyHandler{
			Registry: registry,
			Tracker:  tracker,
			Gate:     gate,
			Events:   publisher,
			Metrics:  collector,
		},
		Ads: &api.AdHandler{
			Engine:   engine,
			Sessions: adreward.NewSessions(),
			Tracker:  tracker,
			Gate:     gate,
			Settings: settingsStore,
			Events:   publisher,
			Metrics:  collector,
		},
		WS: &api.WSHandler{
			Gate:     gate,
			Settings: settingsStore,
			Registry: registry,
			Metrics:  collector,
		},
		Admin: &api.AdminHandler{
			Cfg:       api.AdminConfig{Operator: cfg.Admin.Operator, PINHash: cfg.Admin.PINHash},
			Registry:  registry,
			Gate:      gate,
			Settings:  settingsStore,
			Users:     userService,
			Tokens:    tokenMgr,
			Lockout:   lockout,
			Blacklist: blacklist,
			Audit:     auditService,
			Events:    publisher,
			Metrics:   collector,
		},
		JWTAuth: jwtAuth,
		Limiter: limiter,
		Config:  holder,
		Metrics: collector,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", serviceName, cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if db != nil {
		_ = db.Close()
	}
	_ = rdb.Close()
}
