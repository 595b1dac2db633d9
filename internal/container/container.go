package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/infrastructure/metrics"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/discussion-review/internal/infrastructure/worker"
	"github.com/garyjia/discussion-review/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse order.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	sender port.NotificationSender

	// Infrastructure - Storage
	storage *StorageBundle

	// Observability
	metrics *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle is the storage seen by the engine and the services.
type RepositoryBundle struct {
	Discussion port.DiscussionRepository
	TaskSlot   port.TaskSlotRepository
	Annotation port.AnnotationRepository
	Consensus  port.ConsensusRepository
	User       port.UserRepository
	History    port.HistoryRepository
}

// ServiceBundle holds what the HTTP server and the CLI call into.
type ServiceBundle struct {
	Discussion   service.DiscussionService
	Annotation   service.AnnotationService
	Consensus    service.ConsensusService
	Reconcile    service.ReconcileService
	Report       service.ReportService
	User         service.UserService
	Notification service.NotificationService
}

// HealthStatus reports each component of a started container.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg. Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start wires the components in dependency order: storage and repositories, the Lark
// sender, export storage, the dispatcher with the workflow engine, the services and
// their subscribers, the bootstrap admin and finally the reconcile worker.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return fmt.Errorf("container has been closed")
	case c.ready.Load():
		return fmt.Errorf("container already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"storage", c.initStorage},
		{"dispatcher and workflow", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"bootstrap admin", func() error { return c.bootstrapAdmin(c.ctx) }},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Debug("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.String("database", c.config.Database.Path),
		zap.String("export_dir", c.config.Export.Dir),
		zap.Bool("workers", c.config.Worker.Enabled))
	return nil
}

func (c *Container) initStorage() error {
	c.sender = ProvideNotificationSender(&c.config.Lark, c.logger.Named("lark"))

	storage, err := ProvideStorage(&c.config.Export, c.logger.Named("export"))
	if err != nil {
		return err
	}
	c.storage = storage
	return nil
}

func (c *Container) initWorkers() error {
	if !c.config.Worker.Enabled {
		return nil
	}
	c.workers = ProvideWorkers(&c.config.Worker, c.services.Reconcile, c.logger)
	return c.workers.StartAll(c.ctx)
}

// closer is one shutdown step; Close runs them in reverse start order.
type closer struct {
	name string
	fn   func() error
}

// Close stops the workers, drains in-flight event handlers and then closes the database.
// A closed container cannot be started again.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.closed.Store(true)
	c.ready.Store(false)
	if c.cancel != nil {
		c.cancel()
	}

	var steps []closer
	if c.workers != nil {
		steps = append(steps, closer{"workers", c.workers.StopAll})
	}
	if c.dispatcher != nil {
		steps = append(steps, closer{"dispatcher", c.dispatcher.Close})
	}
	if c.conn != nil {
		steps = append(steps, closer{"database", c.conn.Close})
	}

	failed := 0
	for _, step := range steps {
		if err := step.fn(); err != nil {
			failed++
			c.logger.Error("Shutdown step failed", zap.String("component", step.name), zap.Error(err))
			continue
		}
		c.logger.Debug("Component closed", zap.String("component", step.name))
	}
	if failed > 0 {
		return fmt.Errorf("container closed with %d errors", failed)
	}

	c.logger.Info("Container closed")
	return nil
}

// Ready reports whether Start completed and Close has not been called.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health probes the database and reports the state of the workers and the dispatcher.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth, 3)}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		status.Overall = status.Overall && h.Healthy
	}
	notStarted := ComponentHealth{Message: "not initialized"}

	switch {
	case c.conn == nil:
		set("database", notStarted)
	default:
		if err := c.conn.Ping(); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	switch {
	case !c.config.Worker.Enabled:
		set("workers", ComponentHealth{Healthy: true, Message: "disabled"})
	case c.workers == nil:
		set("workers", notStarted)
	default:
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("%d running", c.workers.Count()),
		})
	}

	if c.dispatcher == nil {
		set("dispatcher", notStarted)
	} else {
		set("dispatcher", ComponentHealth{Healthy: true})
	}
	return status
}

// initDatabase opens SQLite, applies the embedded migrations and builds the repositories.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn, c.logger)
	if err != nil {
		c.conn.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initDispatcherAndWorkflow creates the dispatcher, the metrics subscriber and
// the workflow engine that publishes into them.
func (c *Container) initDispatcherAndWorkflow() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	c.metrics = ProvideMetrics()
	c.metrics.Register(c.dispatcher)

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:                c.repositories,
		TxManager:            c.db,
		Engine:               c.workflow,
		Storage:              c.storage,
		Sender:               c.sender,
		ReconcileConcurrency: c.config.Worker.ReconcileConcurrency,
		Logger:               c.logger,
	})
	if err != nil {
		return err
	}

	services.Notification.Register(c.dispatcher)
	c.services = services
	return nil
}

// bootstrapAdmin makes sure the configured operator can administer a fresh database.
func (c *Container) bootstrapAdmin(ctx context.Context) error {
	email := entity.NormalizeEmail(c.config.BootstrapAdmin)
	if email == "" {
		return nil
	}

	if _, err := c.services.User.EnsureUser(ctx, email, string(entity.RoleAdmin)); err != nil {
		return err
	}
	c.logger.Info("Bootstrap admin ensured", zap.String("email", email))
	return nil
}

// DB exposes the transaction manager for callers that compose their own repositories.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services is nil until Start succeeds.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Metrics returns the Prometheus collectors.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Workers returns the worker manager, nil when workers are disabled.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns a logger satisfying the minimal Logger interfaces of
// the application and interface layers.
func (c *Container) ServiceLogger(name string) service.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named(name)}
}

func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the Info/Error key-value logger
// interfaces used by services, the dispatcher and the HTTP adapter.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
