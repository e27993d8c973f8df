package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gopherai-tutor/internal/ai"
	"gopherai-tutor/internal/app"
	"gopherai-tutor/internal/config"
	"gopherai-tutor/internal/contextstore"
	"gopherai-tutor/internal/document"
	"gopherai-tutor/internal/logging"
	"gopherai-tutor/internal/metrics"
	"gopherai-tutor/internal/model"
	mysqlClient "gopherai-tutor/internal/platform/mysql"
	rabbitmqClient "gopherai-tutor/internal/platform/rabbitmq"
	redisClient "gopherai-tutor/internal/platform/redis"
	"gopherai-tutor/internal/repository"
	"gopherai-tutor/internal/worker"
)

// App holds the process-wide resources. Redis, MySQL, MQConn and
// AnalysisWorker stay nil unless the configuration enables them.
type App struct {
	Config         *config.Config
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Redis          *redis.Client
	MySQL          *gorm.DB
	MQConn         *amqp.Connection
	AnalysisWorker *worker.AnalysisPersistWorker
	Tutor          *app.TutorService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := logging.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("close partial resources failed", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	storage, err := a.contextStorage(ctx)
	if err != nil {
		return err
	}

	deps := app.TutorDeps{
		Store:     contextstore.NewStore(storage),
		Selector:  contextstore.NewSelector(storage, a.Logger.Named("context")),
		Extractor: document.NewExtractor(document.MaxTextChars),
		LLM:       ai.NewOpenAICompatibleClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second),
		LLMConfig: ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		},
		UploadDir: cfg.Storage.UploadDir,
		Window:    cfg.Storage.ContextWindow,
		Metrics:   a.Metrics,
		Logger:    a.Logger.Named("tutor"),
	}
	if !deps.LLMConfig.Valid() {
		a.Logger.Warn("llm is not configured; chat and analyze will fail until an api key is set")
	}

	if cfg.Audit.Enabled {
		if err := a.initAudit(ctx, &deps); err != nil {
			return err
		}
	}

	a.Tutor = app.NewTutorService(deps)
	a.Logger.Info("tutor ready",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("context_location", deps.Store.NamespacePath(contextstore.DefaultSubject)),
		zap.Bool("audit", cfg.Audit.Enabled))
	return nil
}

func (a *App) contextStorage(ctx context.Context) (contextstore.Storage, error) {
	cfg := a.Config
	if !cfg.UsesRedis() {
		return contextstore.NewFSStorage(cfg.Storage.ContextDir), nil
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis, cfg.App.Name)
	if err != nil {
		return nil, err
	}
	a.Redis = redisCli
	return contextstore.NewRedisStorage(redisCli, cfg.Storage.RedisPrefix), nil
}

func (a *App) initAudit(ctx context.Context, deps *app.TutorDeps) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlDB.AutoMigrate(&model.AnalysisRecord{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.AnalysisQueue)
	if err != nil {
		return err
	}
	a.MQConn = mqConn

	analysisRepo := repository.NewAnalysisRepository(mysqlDB)
	analysisWorker := worker.NewAnalysisPersistWorker(mqConn, analysisRepo, cfg.RabbitMQ.AnalysisQueue, a.Logger.Named("audit"))
	if err := analysisWorker.Start(ctx); err != nil {
		return fmt.Errorf("start analysis worker failed: %w", err)
	}
	a.AnalysisWorker = analysisWorker

	deps.Publisher = rabbitmqClient.NewAnalysisPublisher(mqConn, cfg.RabbitMQ.AnalysisQueue)
	deps.Analyses = analysisRepo
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.AnalysisWorker != nil {
		a.AnalysisWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
