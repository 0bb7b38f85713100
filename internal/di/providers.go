// Package di wires the application's dependencies.
package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/internal/config"
	"mindmap-backend/internal/formula"
	"mindmap-backend/internal/handlers"
	"mindmap-backend/internal/host"
	"mindmap-backend/internal/host/dynamo"
	"mindmap-backend/internal/host/sqlite"
	"mindmap-backend/internal/observability"
	"mindmap-backend/internal/render"
	"mindmap-backend/internal/service/mapview"
	"mindmap-backend/internal/view"
	"mindmap-backend/pkg/auth"
)

const serviceName = "mindmap-backend"

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Catalog host.Catalog
	Store   host.RowStore
	Views   *view.Registry
	Service mapview.Service
	Metrics *observability.Collector
	Tracer  *observability.TracerProvider
	Router  *chi.Mux
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build(zap.Fields(zap.String("service", serviceName)))
}

// ProvideCatalog loads the host table catalog.
func ProvideCatalog(cfg *config.Config) (host.Catalog, error) {
	catalog, err := host.LoadCatalog(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// ProvideEvaluator creates the formula evaluator.
func ProvideEvaluator(cfg *config.Config) (*formula.Evaluator, error) {
	return formula.NewEvaluator(formula.Context{
		Constants: map[string]any{"environment": cfg.Environment},
	})
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideRowStore opens the configured row store. SQLite tables are
// created on first use.
func ProvideRowStore(ctx context.Context, cfg *config.Config, catalog host.Catalog, eval *formula.Evaluator, logger *zap.Logger) (host.RowStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDynamoDB:
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		storeCfg := dynamo.DefaultConfig()
		storeCfg.TablePrefix = cfg.DynamoDBTablePrefix
		store := dynamo.NewStore(awsdynamodb.NewFromConfig(awsCfg), catalog, eval, storeCfg, logger)
		logger.Info("Using DynamoDB row store",
			zap.String("region", cfg.AWSRegion),
			zap.String("table_prefix", cfg.DynamoDBTablePrefix),
		)
		return store, func() {}, nil

	default:
		db, err := sqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store := sqlite.NewStore(db, catalog, eval)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Using SQLite row store", zap.String("path", cfg.SQLitePath))
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close SQLite store", zap.Error(err))
			}
		}
		return store, cleanup, nil
	}
}

// ProvideViewRegistry loads the view configurations and, when enabled,
// reloads them on file change.
func ProvideViewRegistry(cfg *config.Config, logger *zap.Logger) (*view.Registry, func(), error) {
	registry, err := view.LoadRegistry(cfg.ViewsFile, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.WatchViews {
		if err := registry.Watch(); err != nil {
			return nil, nil, err
		}
	}
	return registry, registry.Close, nil
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("mindmap")
}

// ProvideCloudWatch creates the CloudWatch publisher, or nil when
// publishing is off.
func ProvideCloudWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.CloudWatchPublisher, error) {
	if !cfg.EnableCloudWatch {
		return nil, nil
	}
	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	logger.Info("Publishing metrics to CloudWatch", zap.String("namespace", cfg.CloudWatchNamespace))
	return observability.NewCloudWatchPublisher(cfg.CloudWatchNamespace, awscloudwatch.NewFromConfig(awsCfg), logger), nil
}

// ProvideRecorder sends service metrics to the Prometheus collector and,
// when configured, to CloudWatch.
func ProvideRecorder(metrics *observability.Collector, cw *observability.CloudWatchPublisher) mapview.Recorder {
	if cw == nil {
		return metrics
	}
	return observability.Tee(metrics, cw)
}

// ProvideTracing installs the OTLP tracer provider when tracing is enabled.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideService creates the mind-map view service.
func ProvideService(views *view.Registry, catalog host.Catalog, store host.RowStore, eval *formula.Evaluator, recorder mapview.Recorder, logger *zap.Logger) mapview.Service {
	return mapview.NewService(views, catalog, store, eval, recorder, logger)
}

// ProvideEmitter creates the render emitter.
func ProvideEmitter(cfg *config.Config) *render.Emitter {
	return render.NewEmitter(cfg.AssetVersion)
}

// ProvideJWTValidator returns nil when authentication is disabled.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.AuthEnabled() {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
}

// ProvideRouter builds the HTTP router.
func ProvideRouter(cfg *config.Config, svc mapview.Service, emitter *render.Emitter, store host.RowStore, metrics *observability.Collector, validator *auth.JWTValidator, logger *zap.Logger) *chi.Mux {
	rc := handlers.RouterConfig{
		Views:        handlers.NewViewHandler(svc, emitter, logger),
		Health:       handlers.NewHealthHandler(store, cfg.AssetVersion, logger),
		Validator:    validator,
		PublicRoleID: cfg.PublicRoleID,
		AssetDir:     cfg.AssetDir,
		AssetVersion: cfg.AssetVersion,
		Logger:       logger,
	}
	if cfg.EnableMetrics {
		rc.Metrics = metrics.Handler()
		rc.HTTPRecorder = metrics
	}
	if cfg.EnableCORS {
		rc.CORSOrigins = cfg.CORSOrigins
	}
	return handlers.SetupRouter(rc)
}
