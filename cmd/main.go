package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	httpapi "github.com/immxrtalbeast/ringcall/internal/api/http"
	"github.com/immxrtalbeast/ringcall/internal/config"
	"github.com/immxrtalbeast/ringcall/internal/ledger"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"github.com/immxrtalbeast/ringcall/internal/service"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
	"github.com/immxrtalbeast/ringcall/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/pion/webrtc/v3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env, cfg.Log)

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Error("failed to open storage", slog.String("driver", cfg.Storage.Driver), sl.Err(err))
		os.Exit(1)
	}

	l := ledger.New(store, log)
	defer l.Close()

	callRepo := repository.NewLedgerCallRepository(l)
	userRepo := repository.NewLedgerUserRepository(l)
	sessionRepo := repository.NewLedgerSessionRepository(l)
	eventRepo := repository.NewLedgerEventRepository(l)
	saleRepo := repository.NewLedgerSaleRepository(l)

	callService := service.NewCallService(callRepo, eventRepo, saleRepo, log)
	activityService := service.NewActivityService(callService, eventRepo, saleRepo, log)
	authService := service.NewAuthService(userRepo, sessionRepo, service.AuthOptions{
		SessionTTL: cfg.Auth.SessionTTL,
		CacheTTL:   cfg.Auth.SessionCacheTTL,
	}, log)
	relayService := service.NewRelayService(callService, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := callService.Load(ctx); err != nil {
		log.Error("failed to restore calls", sl.Err(err))
		os.Exit(1)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Auth.CompactionSpec, func() {
		_, _ = authService.CompactSessions(context.Background())
	}); err != nil {
		log.Error("invalid compaction schedule", slog.String("spec", cfg.Auth.CompactionSpec), sl.Err(err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := httpapi.SetupRouter(
		httpapi.RouterOptions{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			AuthRate:       cfg.Auth.RateLimitRPS,
			AuthBurst:      cfg.Auth.RateLimitBurst,
			Log:            log,
		},
		authService,
		httpapi.NewAuthController(authService, cfg.Auth.SessionTTL, cfg.HTTP.SecureCookie),
		httpapi.NewCallController(callService),
		httpapi.NewActivityController(activityService),
		httpapi.NewSignalController(relayService, iceServers(cfg.WebRTC), log),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", sl.Err(err))
		}
	}()

	log.Info("starting application",
		slog.String("addr", cfg.HTTP.Address),
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string, cfg config.LogConfig) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(logOutput(cfg), &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(logOutput(cfg), &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

// logOutput tees JSON logs into a rotating file when one is configured.
func logOutput(cfg config.LogConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	})
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func openStore(cfg config.StorageConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case config.StorageFile:
		return ledger.NewFileStore(cfg.DataDir)
	case config.StorageMemory:
		return ledger.NewMemoryStore(), nil
	case config.StorageSQLite, config.StoragePostgres:
		db, err := connectDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return ledger.NewGormStore(db)
	case config.StorageRedis:
		if cfg.Redis.Address == "" {
			return nil, errors.New("redis address is empty")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return ledger.NewRedisStore(client, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func connectDatabase(cfg config.StorageConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.StoragePostgres:
		if cfg.DSN == "" {
			return nil, errors.New("database dsn is empty")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		dsn := cfg.DSN
		if dsn == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, err
			}
			dsn = filepath.Join(cfg.DataDir, "ringcall.db")
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.StorageSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(25)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func iceServers(cfg config.WebRTCConfig) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if cfg.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{cfg.TURNServer},
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNCredential,
		})
	}
	return servers
}
