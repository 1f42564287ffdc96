package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/davicafu/orderrouter/internal/app"
	config "github.com/davicafu/orderrouter/internal/config"
	orderApp "github.com/davicafu/orderrouter/internal/order/application"
	orderDomain "github.com/davicafu/orderrouter/internal/order/domain"
	orderHttp "github.com/davicafu/orderrouter/internal/order/infra/inbound/http"
	orderMongo "github.com/davicafu/orderrouter/internal/order/infra/outbound/db/mongodb"
	orderPostgres "github.com/davicafu/orderrouter/internal/order/infra/outbound/db/postgre"
	orderSQLite "github.com/davicafu/orderrouter/internal/order/infra/outbound/db/sqlite"
	routingDomain "github.com/davicafu/orderrouter/internal/routing/domain"
	routingHttp "github.com/davicafu/orderrouter/internal/routing/infra/inbound/http"
	routingClickhouse "github.com/davicafu/orderrouter/internal/routing/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/orderrouter/internal/shared/codec"
	infraCache "github.com/davicafu/orderrouter/internal/shared/infra/cache"
	infraEvents "github.com/davicafu/orderrouter/internal/shared/infra/events"
	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderrouter/internal/shared/infra/platform/cache"
	"github.com/davicafu/orderrouter/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	cfg, cfgErr := config.LoadConfig()
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	logger.Init(level)     // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	if cfgErr != nil {
		log.Fatal("invalid configuration", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Store ----------------
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// ---------------- Cache ----------------
	var ledger sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, dispatch ledger en memoria:", zap.Error(err))
		memCache := infraCache.NewInMemoryCache(cfg.DispatchLedgerTTL, time.Minute)
		defer memCache.Stop()
		ledger = memCache
	} else {
		ledger = infraCache.NewRedisCache(rdb, cfg.DispatchLedgerTTL)
		log.Info("✅ Redis conectado, dispatch ledger habilitado")
	}
	defer rdb.Close()

	// ---------------- Audit ----------------
	var audit routingDomain.RouteAuditRepository
	if cfg.ClickHouseAddr != "" {
		chRepo, err := routingClickhouse.NewRouteAuditRepo(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, auditoría desactivada", zap.Error(err))
		} else if err := chRepo.InitSchema(ctx); err != nil {
			log.Warn("⚠️ No se pudo crear la tabla de auditoría", zap.Error(err))
			chRepo.Close()
		} else {
			defer chRepo.Close()
			audit = chRepo
			log.Info("✅ ClickHouse conectado, auditoría de rutas habilitada")
		}
	}

	// ---------------- Events ---------------
	var publisher sharedBus.Publisher
	var startConsumer app.ConsumerStarter

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como broker")

		writer := infraEvents.NewKafkaWriter(cfg.KafkaBrokers)
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

		startConsumer = func(ctx context.Context, worker int, handler sharedBus.MessageHandler) <-chan struct{} {
			reader := infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.InputTopic, cfg.KafkaGroupID)
			stopped := infraEvents.NewConsumerAdapter(reader, handler, log.With(zap.Int("worker", worker))).Start(ctx)
			go func() {
				<-stopped
				reader.Close()
			}()
			return stopped
		}
	} else {
		log.Info("⚡️Usando broker en memoria (canales de Go)")

		broker := infraEvents.NewInMemoryBroker(100)
		publisher = broker

		startConsumer = func(ctx context.Context, worker int, handler sharedBus.MessageHandler) <-chan struct{} {
			return broker.Start(ctx, cfg.InputTopic, handler, log.With(zap.Int("worker", worker)))
		}

		// En memoria nadie lee los destinos: los vaciamos logueando lo recibido.
		destinations := map[string]bool{cfg.ErrorTopic: true}
		for _, r := range cfg.RoutingRules {
			destinations[r.Destination] = true
		}
		for dest := range destinations {
			broker.Start(ctx, dest, sharedBus.HandlerFunc(func(ctx context.Context, msg sharedBus.Message) error {
				log.Info("📦 Pedido recibido en destino",
					zap.String("destination", dest),
					zap.ByteString("order_id", msg.Key),
					zap.String("outcome", msg.Header(sharedBus.HeaderRouteOutcome)),
				)
				return nil
			}), log)
		}
	}

	// --------------- Engine ----------------
	payloadCodec, err := codec.New(cfg.PayloadCodec)
	if err != nil {
		log.Fatal("invalid payload codec", zap.Error(err))
	}

	engine, err := app.New(app.Settings{
		InputTopic: cfg.InputTopic,
		ErrorTopic: cfg.ErrorTopic,
		Rules:      cfg.RoutingRules,
		Poll: orderApp.PollerConfig{
			Interval: cfg.PollInterval,
			Limit:    cfg.PollLimit,
			Workers:  cfg.PollWorkers,
			Policy:   cfg.FailurePolicy,
		},
		RouterWorkers: cfg.RouterWorkers,
		LedgerTTL:     cfg.DispatchLedgerTTL,
		AuditBatch:    500,
		AuditInterval: 2 * time.Second,
	}, app.Deps{
		Store:     store,
		Publisher: publisher,
		Codec:     payloadCodec,
		Ledger:    ledger,
		Audit:     audit,
		Log:       log,
	})
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx, startConsumer) }()

	// ---------------- HTTP ----------------
	router := gin.Default()
	orderHttp.RegisterOrderRoutes(router, orderHttp.NewOrderHandler(store))
	routingHttp.RegisterRoutingRoutes(router, routingHttp.NewRoutingHandler(engine.Router()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		log.Info("🚀 Server running",
			zap.String("url", "http://localhost:"+cfg.HTTPPort),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Señal recibida, apagando...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	if err := <-engineDone; err != nil {
		log.Error("engine stopped with error", zap.Error(err))
	}
}

// openStore abre el RecordStore elegido por STORE_DRIVER y devuelve su cierre.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (orderDomain.RecordStore, func()) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := orderPostgres.InitPostgres(ctx, db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		log.Info("✅ Store: Postgres")
		return orderPostgres.NewOrderRepoPostgres(db), func() { db.Close() }

	case config.StoreMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect MongoDB", zap.Error(err))
		}
		repo, err := orderMongo.NewOrderRepoMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			log.Fatal("failed to initialize MongoDB", zap.Error(err))
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("⚠️ No se pudieron crear los índices de MongoDB", zap.Error(err))
		}
		log.Info("✅ Store: MongoDB")
		return repo, func() { client.Disconnect(context.Background()) }

	default:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		// SQLite serializa escrituras; una conexión evita SQLITE_BUSY en los claims
		db.SetMaxOpenConns(1)
		if err := orderSQLite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		if cfg.SeedDemo {
			centers := []string{"UNKNOWN_CENTER"}
			for _, r := range cfg.RoutingRules {
				if r.Match == routingDomain.MatchExact {
					centers = append(centers, r.Value)
				}
			}
			if err := orderSQLite.SeedDemo(ctx, db, centers); err != nil {
				log.Warn("⚠️ No se pudieron insertar los pedidos de ejemplo", zap.Error(err))
			} else {
				log.Info("✅ Pedidos de ejemplo insertados", zap.Strings("centers", centers))
			}
		}
		log.Info("✅ Store: SQLite", zap.String("path", cfg.SQLitePath))
		return orderSQLite.NewOrderRepoSQLite(db), func() { db.Close() }
	}
}
