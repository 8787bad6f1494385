package router

import (
	"context"
	"fmt"
	"time"

	"estate-backend/internal/application/possessionreports"
	possvc "estate-backend/internal/application/possessions"
	"estate-backend/internal/config"
	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/codes"
	"estate-backend/internal/infrastructure/database"
	"estate-backend/internal/infrastructure/documents"
	"estate-backend/internal/infrastructure/persistence"
	healthhandler "estate-backend/internal/interfaces/handlers/health"
	posshandler "estate-backend/internal/interfaces/handlers/possessions"
	"estate-backend/internal/metrics"
	"estate-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) PingContext(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Deps are the connections CreateApp would otherwise open from config. Nil fields are opened
// from cfg when configured; tests pass SQLite and miniredis here.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Documents domain.DocumentStore
	Registry  *prometheus.Registry
	Now       func() time.Time
}

// CreateApp opens the configured connections and builds the Fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	var deps Deps
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis url: %w", err)
		}
		deps.Redis = redis.NewClient(opt)
	}
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := database.AutoMigrate(db); err != nil {
				return nil, nil, nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		deps.DB = db
	}
	app, err := NewApp(cfg, deps)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, deps.DB, deps.Redis, nil
}

// NewApp wires middleware, health, metrics and (with a database) the possession routes.
func NewApp(cfg *config.Config, deps Deps) (*fiber.App, error) {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)
	rdb := deps.Redis

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               posshandler.DefaultMaxUploadBytes + 1<<20,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.Metrics(m))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Session(rdb, middleware.SessionConfig{Secret: cfg.SessionSecret}))

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if cfg.DocumentStore == config.DocumentsSupabase {
		hh.Probes = map[string]string{"documents": cfg.SupabaseURL + "/storage/v1/version"}
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if deps.DB == nil {
		log.Warn().Msg("DATABASE_URL not set, possession routes disabled")
		return app, nil
	}
	db := deps.DB
	hh.DB = &gormDBPinger{db: db}

	store := &persistence.PossessionStore{DB: db}
	allocator, err := newAllocator(cfg, db, rdb, store, deps.Now)
	if err != nil {
		return nil, err
	}
	docs := deps.Documents
	if docs == nil {
		if docs, err = newDocumentStore(cfg); err != nil {
			return nil, err
		}
	}

	svc := &possvc.Service{
		Store: store,
		Codes: &codes.Reserver{
			Allocator:   allocator,
			MaxAttempts: cfg.CodeAllocationAttempts,
			OnRetry:     m.IncCodeRetry,
		},
		Plots:               &persistence.PlotReader{DB: db},
		Files:               &persistence.FileReader{DB: db},
		Officers:            &persistence.OfficerReader{DB: db},
		Documents:           docs,
		Metrics:             m,
		Now:                 deps.Now,
		RequireHandoverGate: cfg.EnforceHandoverGate,
	}
	reports := &possessionreports.Service{
		Store:       store,
		Now:         deps.Now,
		OverdueDays: cfg.OverdueDaysDefault,
	}
	ph := &posshandler.Handlers{Service: svc, Reports: reports}
	posshandler.Register(app.Group("/api/v1/possessions"), ph)

	return app, nil
}

func newAllocator(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store *persistence.PossessionStore, now func() time.Time) (codes.Allocator, error) {
	switch cfg.CodeAllocator {
	case config.AllocatorRedis:
		if rdb == nil {
			return nil, fmt.Errorf("code allocator: redis selected but no redis client")
		}
		return &codes.RedisAllocator{Rdb: rdb, Prefix: cfg.PossessionCodePrefix, Seed: store.MaxCodeSuffix, Now: now}, nil
	default:
		return &codes.GormAllocator{DB: db, Prefix: cfg.PossessionCodePrefix, Now: now}, nil
	}
}

// newDocumentStore returns nil (attachments disabled) when DOCUMENT_STORE is empty.
func newDocumentStore(cfg *config.Config) (domain.DocumentStore, error) {
	switch cfg.DocumentStore {
	case config.DocumentsSupabase:
		return &documents.SupabaseStore{
			BaseURL:   cfg.SupabaseURL,
			SecretKey: cfg.SupabaseSecretKey,
			Bucket:    cfg.DocumentBucket,
		}, nil
	case config.DocumentsS3:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return documents.NewS3(ctx, documents.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case config.DocumentsMemory:
		if cfg.IsProduction() {
			log.Warn().Msg("in-memory document store in production, attachments are lost on restart")
		}
		return documents.NewMemoryStore(), nil
	}
	log.Warn().Msg("DOCUMENT_STORE not set, attachments and stored certificates disabled")
	return nil, nil
}
