package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/application/player"
	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/config"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	cacheredis "github.com/mosswell/world-service/internal/infrastructure/caching/redis"
	"github.com/mosswell/world-service/internal/infrastructure/db/postgres"
	"github.com/mosswell/world-service/internal/infrastructure/description"
	"github.com/mosswell/world-service/internal/infrastructure/memory"
	"github.com/mosswell/world-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/mosswell/world-service/internal/logger"
	"github.com/mosswell/world-service/internal/telemetry"
	"github.com/mosswell/world-service/internal/transport/http/handlers"
	authmw "github.com/mosswell/world-service/internal/transport/http/middleware"
	"github.com/mosswell/world-service/internal/transport/http/router"
)

// sysClock implements the Clock ports using system time.
type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now().UTC() }

// realmStore joins the realm ports the wiring consumes: worldgen resolves
// terrain through Get, the player view lists memberships.
type realmStore interface {
	worldgen.RealmRepository
	player.RealmLister
}

// App holds the wired service. Backends that were actually configured are
// non-nil and need closing on the way down.
type App struct {
	Config *config.Config
	Server *http.Server
	DB     *sql.DB

	Publisher *rabbitmq.Publisher // nil on the in-memory bus
	Consumer  *rabbitmq.Consumer  // nil on the in-memory bus
	Pump      *memory.Pump        // nil when a broker is configured
	Cache     *cacheredis.Client  // nil when REDIS_URL is unset
}

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		u, _ := url.Parse(cfg.DatabaseURL)
		zlog.Info().
			Str("db_user", u.User.Username()).
			Str("db_host", u.Host).
			Str("db_db", u.Path).
			Msg("db config loaded")

		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("db open failed")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			cancel()
			zlog.Fatal().Err(err).Msg("schema bootstrap failed")
		}
		cancel()
	} else {
		zlog.Warn().Msg("DATABASE_URL empty: world state lives in process memory")
	}

	app := NewApp(cfg, db)
	defer func() {
		if app.Publisher != nil {
			_ = app.Publisher.Close()
		}
		if app.Cache != nil {
			_ = app.Cache.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.Consumer != nil {
		if err := app.Consumer.Start(ctx); err != nil {
			zlog.Fatal().Err(err).Msg("consumer start failed")
		}
	}
	if app.Pump != nil {
		go app.Pump.Run(ctx, 0)
	}

	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server crashed")
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutdown signal received")

	// Stop intake first so in-flight handlers drain before the edge closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if app.Consumer != nil {
		if err := app.Consumer.Stop(shutdownCtx); err != nil {
			zlog.Warn().Err(err).Msg("consumer stop timed out")
		}
	}
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("server shutdown timed out")
	}
	zlog.Info().Msg("shutdown complete")
}

func NewApp(cfg *config.Config, db *sql.DB) *App {
	clock := sysClock{}
	sink := telemetry.MultiSink{telemetry.NewLogSink(), telemetry.NewMetricsSink()}

	// 1) Repositories
	var (
		locations   worldgen.LocationRepository
		layers      worldgen.LayerRepository
		realms      realmStore
		processed   dispatch.ProcessedEventRepository
		deadLetters dispatch.DeadLetterRepository
	)
	if db != nil {
		locations = postgres.NewLocationRepo(db)
		layers = postgres.NewLayerRepo(db)
		realms = postgres.NewRealmRepo(db)
		processed = postgres.NewProcessedEventRepo(db)
		deadLetters = postgres.NewDeadLetterRepo(db)
	} else {
		store := memory.NewStore()
		locations = store.Locations()
		layers = store.Layers()
		realms = store.Realms()
		processed = store.ProcessedEvents()
		deadLetters = store.DeadLetters()
	}

	// 2) View cache (optional)
	var cache *cacheredis.Client
	var viewCache player.Cache
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		c, err := cacheredis.New(cfg.RedisURL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("redis init failed")
		}
		cache = c
		viewCache = c
		rdb = c.Raw()
		locations = cacheredis.NewCachingLocationRepo(locations, cache)
		layers = cacheredis.NewCachingLayerRepo(layers, cache)
		zlog.Info().Msg("look-view cache ready")
	} else {
		zlog.Warn().Msg("REDIS_URL empty: look views are composed per request")
	}

	// 3) Publisher: the broker when configured, the in-process bus otherwise
	var pub worldgen.Publisher
	var rabbit *rabbitmq.Publisher
	var bus *memory.Bus
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			zlog.Fatal().Err(err).Msg("rabbit publisher init failed")
		}
		rabbit = p
		pub = p
		zlog.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbit publisher ready")
	} else {
		bus = memory.NewBus()
		pub = bus
		zlog.Warn().Msg("RABBITMQ_URL empty: events ride the in-process bus")
	}

	if db == nil {
		seedDevWorld(cfg, locations, layers, realms, clock)
	}

	// 4) Handler registry
	gen := description.NewTemplateGenerator()
	registry := dispatch.NewRegistry()
	registry.MustRegister(worldevent.TypeLocationBatchGen,
		worldgen.NewBatchHandler(locations, layers, realms, gen, pub, sink, clock))
	registry.MustRegister(worldevent.TypeExitCreate,
		worldgen.NewExitHandler(locations))
	registry.MustRegister(worldevent.TypeAmbienceGenerated,
		worldgen.NewAmbienceHandler(locations, layers, clock))
	registry.MustRegister(worldevent.TypePlayerMove,
		player.NewMoveHandler(sink))

	// 5) Pipeline
	proc := dispatch.NewProcessor(registry, processed, deadLetters,
		dispatch.NewKeyCache(cfg.DedupeCacheSize), sink, clock)

	// 6) Delivery: broker consumer or bus pump
	var consumer *rabbitmq.Consumer
	var pump *memory.Pump
	if cfg.RabbitURL != "" {
		consumer = rabbitmq.NewConsumer(rabbitmq.Config{
			RabbitURL:   cfg.RabbitURL,
			Exchange:    cfg.RabbitExchange,
			Queue:       cfg.RabbitQueue,
			Prefetch:    cfg.RabbitPrefetch,
			Tag:         "world-service",
			MaxAttempts: cfg.RabbitMaxAttempts,
			Workers:     cfg.WorkerPoolSize,
		}, proc, logger.Logger)
	} else {
		pump = memory.NewPump(bus, proc, cfg.RabbitMaxAttempts)
	}

	// 7) Application
	orch := worldgen.NewOrchestrator(locations, realms, pub, sink, clock, cfg.StarterLocationID)
	players := player.NewService(locations, layers, realms, orch, pub, sink, clock, viewCache, cfg.CacheTTLLook)

	// 8) Transport
	world := handlers.NewWorldHandler(players, orch)
	dl := handlers.NewDeadLettersHandler(deadLetters, clock)
	var pinger handlers.Pinger
	if db != nil {
		pinger = db
	}
	z := handlers.NewHealthHandler(pinger, rdb)
	auth := authmw.NewAuth(cfg.JWTSecret, cfg.JWTIssuer)

	// 9) Router + server
	httpHandler := router.New(world, dl, z, auth, cfg)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &App{
		Config:    cfg,
		Server:    srv,
		DB:        db,
		Publisher: rabbit,
		Consumer:  consumer,
		Pump:      pump,
		Cache:     cache,
	}
}

// seedDevWorld plants the starter location so a fresh in-memory world is
// walkable immediately. The durable path seeds through scripts/seeder.
func seedDevWorld(cfg *config.Config, locations worldgen.LocationRepository, layers worldgen.LayerRepository, realms realmStore, clock worldgen.Clock) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if cfg.StarterLocationID == "" {
		cfg.StarterLocationID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("mosswell:village-square")).String()
	}
	if _, err := locations.Get(ctx, cfg.StarterLocationID); err == nil {
		return
	}

	now := clock.Now()
	_ = realms.Upsert(ctx, &domain.Realm{
		Key:       "mosswell",
		Name:      "Mosswell",
		RealmType: domain.RealmUrban,
		Scope:     "REGIONAL",
	})

	square := domain.NewLocation("Mosswell Village Square", domain.TerrainOpenPlain, now)
	square.ID = cfg.StarterLocationID
	square.AddTag(domain.RealmTag("mosswell"))
	for _, d := range square.Terrain.DefaultDirections() {
		square.HintPending(d, "seed", now)
	}
	if err := locations.Upsert(ctx, square); err != nil {
		zlog.Error().Err(err).Msg("dev world seed failed")
		return
	}
	_ = layers.AddLayer(ctx, domain.NewDescriptionLayer(square.ID, domain.LayerBase,
		"A well-trodden square ringed by timber houses. Roads run out in every direction.", 0, now))

	zlog.Info().Str("starter_location_id", square.ID).Msg("dev world seeded")
}
