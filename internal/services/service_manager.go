package services

import (
	"log/slog"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
)

// ServiceManager wires the gradebook services over one repository
type ServiceManager struct {
	Categories   CategoryService
	GradeItems   GradeItemService
	Scores       ScoreService
	Aggregator   AggregatorService
	Verification VerificationService
	Export       ExportService
	Activity     ActivityRecorder
}

type ServiceManagerConfig struct {
	Repo      repositories.Repository
	Cache     cache.CacheService
	CacheTTL  time.Duration
	Publisher events.EventPublisher
	Logger    *slog.Logger
	Validator *validator.Validator
}

func NewServiceManager(cfg ServiceManagerConfig) *ServiceManager {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoopCache()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}

	activity := NewActivityRecorder(cfg.Repo, cfg.Publisher, cfg.Logger)
	categories := NewCategoryService(cfg.Repo, cfg.Logger)
	aggregator := NewAggregatorService(cfg.Repo, categories, cfg.Cache, cfg.CacheTTL, cfg.Logger)
	verification := NewVerificationService(cfg.Repo, cfg.Cache, activity, cfg.Logger, cfg.Validator)

	return &ServiceManager{
		Categories: categories,
		GradeItems: NewGradeItemService(GradeItemServiceDeps{
			Repo:         cfg.Repo,
			Categories:   categories,
			Aggregator:   aggregator,
			Verification: verification,
			Activity:     activity,
			Cache:        cfg.Cache,
			CacheTTL:     cfg.CacheTTL,
			Logger:       cfg.Logger,
			Validator:    cfg.Validator,
		}),
		Scores:       NewScoreService(cfg.Repo, aggregator, verification, activity, cfg.Cache, cfg.Logger, cfg.Validator),
		Aggregator:   aggregator,
		Verification: verification,
		Export:       NewExportService(cfg.Repo, aggregator, activity, cfg.Logger, cfg.Validator),
		Activity:     activity,
	}
}
