package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/dispatcher"
	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/application/service"
	"github.com/garyjia/hei-liquidation/internal/application/workflow"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/cache"
	infraLark "github.com/garyjia/hei-liquidation/internal/infrastructure/external/lark"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/lock"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/repository"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/storage"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/worker"
	"github.com/garyjia/hei-liquidation/migrations"
	"github.com/garyjia/hei-liquidation/pkg/database"
	"github.com/garyjia/hei-liquidation/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// LockBundle holds the control-number locker and the Redis client behind it, if any.
type LockBundle struct {
	Locker port.Locker
	Redis  *redis.Client
}

// LarkBundle holds all Lark-related components. Both are nil when Lark is disabled.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.LarkMessageSender
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Liquidation:  repository.NewLiquidationRepository(db, logger),
		Financial:    repository.NewFinancialRepository(db, logger),
		Review:       repository.NewReviewRepository(db, logger),
		Transmittal:  repository.NewTransmittalRepository(db, logger),
		Compliance:   repository.NewComplianceRepository(db, logger),
		Beneficiary:  repository.NewBeneficiaryRepository(db, logger),
		Document:     repository.NewDocumentRepository(db, logger),
		Reference:    repository.NewReferenceRepository(db, logger),
		User:         repository.NewUserRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
		Activity:     repository.NewActivityLogRepository(db, logger),
	}, nil
}

// ProvideReferenceCache wraps the reference repository in the lookup cache.
func ProvideReferenceCache(cfg *WorkflowConfig, repo port.ReferenceRepository) (*cache.ReferenceCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reference repository is required")
	}
	return cache.NewReferenceCache(repo, cfg.CacheSize, cfg.CacheTTL), nil
}

// ProvideLocker returns a Redis-backed locker when Redis is configured and an
// in-process one otherwise.
func ProvideLocker(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled() {
		logger.Info("Redis not configured, using in-process control number lock")
		return &LockBundle{Locker: lock.NewLocalLocker()}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	locker := lock.NewRedisLocker(rdb, lock.RedisConfig{
		Prefix: cfg.KeyPrefix,
		TTL:    cfg.LockTTL,
		Wait:   cfg.LockWait,
	}, utils.NewKVLogger(logger))

	logger.Info("Redis control number lock enabled", zap.String("address", cfg.Address))
	return &LockBundle{Locker: locker, Redis: rdb}, nil
}

// ProvideLarkClients creates the Lark client and messenger.
// Returns an empty LarkBundle when credentials are not configured.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled() {
		logger.Info("Lark not configured, notifications stay in the inbox only")
		return &LarkBundle{}, nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:      cfg.AppID,
		AppSecret:  cfg.AppSecret,
		BaseURL:    cfg.BaseURL,
		APITimeout: cfg.APITimeout,
	}, logger)

	return &LarkBundle{
		Client:    sdkClient,
		Messenger: infraLark.NewMessenger(sdkClient, logger),
	}, nil
}

// ProvideStorage creates the document file storage.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := os.MkdirAll(cfg.DocumentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	return storage.NewLocalFileStorage(cfg.DocumentDir, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
// Returns dispatcher.Dispatcher implementation.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	References   *cache.ReferenceCache
	Locker       port.Locker
	Storage      port.FileStorage
	Messenger    port.LarkMessageSender
	Dispatcher   dispatcher.Dispatcher
	Capabilities map[string][]string
	Logger       *zap.Logger
}

// ProvideServices creates all application services and the workflow engine,
// and subscribes the notification service to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.References == nil {
		return nil, fmt.Errorf("reference cache is required")
	}
	if deps.Locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)
	clock := service.SystemClock{}

	roles := deps.Capabilities
	if len(roles) == 0 {
		roles = service.DefaultRoleCapabilities()
	}
	capabilities := service.NewRoleCapabilityChecker(roles)

	activity := service.NewActivityService(deps.Repos.Activity, clock, serviceLogger)

	opts := []service.LiquidationServiceOption{
		service.WithEventDispatcher(deps.Dispatcher),
		service.WithActivity(activity),
	}
	if deps.Storage != nil {
		opts = append(opts, service.WithFileStorage(deps.Storage))
	}

	liquidations := service.NewLiquidationService(
		service.LiquidationRepositories{
			Liquidations:  deps.Repos.Liquidation,
			Financials:    deps.Repos.Financial,
			Reviews:       deps.Repos.Review,
			Transmittals:  deps.Repos.Transmittal,
			Compliances:   deps.Repos.Compliance,
			Beneficiaries: deps.Repos.Beneficiary,
			Documents:     deps.Repos.Document,
		},
		deps.References,
		capabilities,
		deps.TxManager,
		deps.Locker,
		clock,
		serviceLogger,
		opts...,
	)

	engine := workflow.NewEngine(
		workflow.Dependencies{
			Liquidations:  deps.Repos.Liquidation,
			Financials:    deps.Repos.Financial,
			Reviews:       deps.Repos.Review,
			Transmittals:  deps.Repos.Transmittal,
			Compliances:   deps.Repos.Compliance,
			Beneficiaries: deps.Repos.Beneficiary,
			Documents:     deps.Repos.Document,
			References:    deps.References,
			Capabilities:  capabilities,
			TxManager:     deps.TxManager,
		},
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithActivityLogger(activity),
		workflow.WithClock(clock),
		workflow.WithLogger(serviceLogger),
	)

	references := service.NewReferenceService(
		deps.Repos.Reference,
		deps.References,
		capabilities,
		activity,
		serviceLogger,
	)

	notifications := service.NewNotificationService(
		deps.Repos.Notification,
		deps.Repos.User,
		deps.References,
		deps.Messenger,
		clock,
		serviceLogger,
	)
	notifications.Register(deps.Dispatcher)

	return &ServiceBundle{
		Liquidation:  liquidations,
		Workflow:     engine,
		Reference:    references,
		Notification: notifications,
		Activity:     activity,
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Services    *ServiceBundle
	LarkEnabled bool
	WorkerCfg   *WorkerConfig
	Logger      *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	if deps.LarkEnabled {
		retryCfg := worker.DefaultPushRetryWorkerConfig()
		if deps.WorkerCfg.PushRetryInterval > 0 {
			retryCfg.PollInterval = deps.WorkerCfg.PushRetryInterval
		}
		if deps.WorkerCfg.PushRetryBatchSize > 0 {
			retryCfg.BatchSize = deps.WorkerCfg.PushRetryBatchSize
		}
		manager.Register(worker.NewPushRetryWorker(retryCfg, deps.Services.Notification, deps.Logger))
	}

	return manager, nil
}
