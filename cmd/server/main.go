package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/gridextend/internal/api"
	"github.com/annel0/gridextend/internal/config"
	"github.com/annel0/gridextend/internal/eventbus"
	"github.com/annel0/gridextend/internal/extend"
	"github.com/annel0/gridextend/internal/level"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/observability"
	"github.com/annel0/gridextend/internal/physics"
	"github.com/annel0/gridextend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к config.yml (по умолчанию $EXTEND_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logOpts := logging.Options{Dir: cfg.Logging.Dir, MinConsoleLevel: logLevel, MinFileLevel: logging.DEBUG}
	if err := logging.InitDefaultLogger("server", logOpts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().Configure(logOpts)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🧱 Запуск Grid Extend Engine...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		logging.Info("🔭 OpenTelemetry → %s", cfg.Telemetry.Endpoint)
	}

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics, err := observability.NewEngineMetrics(reg)
	if err != nil {
		return err
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return fmt.Errorf("event logger: %w", err)
	}
	exporter, err := eventbus.NewMetricsExporter(bus, reg)
	if err != nil {
		return err
	}
	exporter.Start()
	defer exporter.Stop()

	// === ДВИЖОК ===
	engine := extend.NewEngine(extend.Options{
		Extend:        cfg.Extend,
		IndexCapacity: cfg.Index.InitialCapacity,
		Workers:       cfg.Index.Workers,
		SpawnPerTick:  cfg.Level.SpawnPerTick,
		Bus:           bus,
		Metrics:       engineMetrics,
		Proxies:       physics.NewProxyRegistry(cfg.Extend.ColliderActiveRadius, cfg.Extend.ColliderHysteresis),
	})

	layout, err := loadLayout(cfg.Level)
	if err != nil {
		return err
	}
	n := engine.LoadStatic(layout.Resolve())
	logging.Info("🗺️  Уровень %q: %d блоков, %d якорей", layout.Name, n, layout.Anchors())

	// === ПОЗИЦИИ ИГРОКОВ ===
	players, err := newPositionRepo(ctx, cfg.Players)
	if err != nil {
		return err
	}
	defer players.Close()

	// === REST API ===
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	rest, err := api.NewRestServer(api.Config{
		Port:        restAddr,
		Engine:      engine,
		Bus:         bus,
		Players:     players,
		Registry:    reg,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}

	if _, err := rest.RestorePlayer(ctx, api.DefaultPlayer); err != nil {
		logging.Warn("⚠️ Позиция игрока не восстановлена: %v", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- rest.Start() }()
	go func() { errCh <- engine.Run(ctx) }()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", restAddr)
	logging.Info("   ⏱️  Частота тиков: %d Гц", cfg.Extend.TickRate)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, останавливаемся...")
	case runErr = <-errCh:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}

	// === GRACEFUL SHUTDOWN ===
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rest.Stop(sctx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	return runErr
}

func newBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch cfg.Backend {
	case "jetstream":
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("jetstream bus: %w", err)
		}
		logging.Info("📨 Шина событий: JetStream %s (stream %s)", cfg.URL, cfg.Stream)
		return bus, nil
	default:
		logging.Info("📨 Шина событий: in-memory")
		return eventbus.NewMemoryBus(1024), nil
	}
}

func newPositionRepo(ctx context.Context, cfg config.PlayersConfig) (storage.PositionRepo, error) {
	if cfg.Backend != "redis" {
		return storage.NewMemoryPositionRepo(), nil
	}
	rc := storage.DefaultRedisConfig()
	rc.Addr = cfg.RedisAddr
	rc.Password = cfg.RedisPassword
	rc.DB = cfg.RedisDB
	rc.TTL = time.Duration(cfg.TTLHours) * time.Hour
	repo, err := storage.NewRedisPositionRepository(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("players store: %w", err)
	}
	return repo, nil
}

// loadLayout читает раскладку из файла или генерирует её шумом Перлина
func loadLayout(cfg config.LevelConfig) (*level.Layout, error) {
	if cfg.LayoutPath != "" {
		return level.Load(cfg.LayoutPath)
	}
	logging.Info("🌱 Раскладка не задана, генерируем (seed=%d)", cfg.Seed)
	return level.NewGenerator(cfg.Seed, cfg.Width, cfg.Depth, cfg.MaxHeight).Generate(), nil
}
