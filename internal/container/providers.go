package container

import (
	"fmt"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/infrastructure/export"
	infraLark "github.com/garyjia/discussion-review/internal/infrastructure/external/lark"
	"github.com/garyjia/discussion-review/internal/infrastructure/metrics"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/discussion-review/internal/infrastructure/storage"
	"github.com/garyjia/discussion-review/internal/infrastructure/worker"
	"github.com/garyjia/discussion-review/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies pending migrations and wraps
// the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Run(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(conn *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Discussion: repository.NewDiscussionRepository(conn.DB, logger),
		TaskSlot:   repository.NewTaskSlotRepository(conn.DB, logger),
		Annotation: repository.NewAnnotationRepository(conn.DB, logger),
		Consensus:  repository.NewConsensusRepository(conn.DB, logger),
		User:       repository.NewUserRepository(conn.DB, logger),
		History:    repository.NewHistoryRepository(conn.DB, logger),
	}, nil
}

// ProvideNotificationSender returns the Lark messenger, or a log-only sender
// when the bot is not configured.
func ProvideNotificationSender(cfg *LarkConfig, logger *zap.Logger) port.NotificationSender {
	return infraLark.NewNotificationSender(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
	}, logger)
}

// StorageBundle holds export storage and rendering.
type StorageBundle struct {
	FileStorage port.FileStorage
	Exporter    port.ReportExporter
}

// ProvideStorage creates the export directory store and the workbook exporter.
func ProvideStorage(cfg *ExportConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.Dir, logger),
		Exporter:    export.NewXLSXExporter(logger),
	}, nil
}

// ProvideDispatcher creates the in-process event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}))
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the engine that owns every status write.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}

	return workflow.NewEngine(
		deps.Repos.TaskSlot,
		deps.Repos.Annotation,
		deps.Repos.Consensus,
		deps.Repos.History,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	), nil
}

// ServiceDeps holds dependencies for service creation.
type ServiceDeps struct {
	Repos                *RepositoryBundle
	TxManager            port.TransactionManager
	Engine               workflow.WorkflowEngine
	Storage              *StorageBundle
	Sender               port.NotificationSender
	ReconcileConcurrency int
	Logger               *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Engine == nil || deps.Storage == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	r := deps.Repos
	log := &zapLoggerAdapter{logger: deps.Logger.Named("service")}

	return &ServiceBundle{
		Discussion: service.NewDiscussionService(r.Discussion, r.User, deps.TxManager, deps.Engine, log),
		Annotation: service.NewAnnotationService(r.Discussion, r.Annotation, r.TaskSlot, r.User, deps.Engine, log),
		Consensus: service.NewConsensusService(r.Discussion, r.Consensus, r.User, deps.Engine,
			service.NewRetroactiveHandler(r.Consensus, deps.Engine, log), log),
		Reconcile: service.NewReconcileService(r.Discussion, r.User, deps.Engine, deps.ReconcileConcurrency, log),
		Report: service.NewReportService(r.Discussion, r.TaskSlot, r.Annotation, r.Consensus, r.History,
			deps.Storage.Exporter, deps.Storage.FileStorage, log),
		User:         service.NewUserService(r.User, deps.TxManager, log),
		Notification: service.NewNotificationService(deps.Sender, log),
	}, nil
}

// ProvideWorkers creates the worker manager with the reconcile worker registered.
func ProvideWorkers(cfg *WorkerConfig, reconciler worker.Reconciler, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger.Named("worker"))
	manager.Register(worker.NewReconcileWorker(worker.ReconcileWorkerConfig{
		Interval: cfg.ReconcileInterval,
		Timeout:  cfg.ReconcileTimeout,
	}, reconciler, logger.Named("reconcile")))
	return manager
}

// ProvideMetrics creates the Prometheus collectors.
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}
