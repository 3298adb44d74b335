package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/cbt-service/internal/events"
	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/metrics"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Theory answer comparator, see grading.NewSimilarityScorer
	SimilarityStrategy string

	// Optional collaborators; nil disables them
	EventPublisher events.EventPublisher
	Metrics        *metrics.Metrics

	// Extra options for the attempt service, used by tests to fix the clock
	// and the shuffle.
	AttemptOptions []AttemptOption
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	examService    ExamService
	attemptService AttemptService
	resultService  ResultService
	studentService StudentService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() error {
	similarity, err := grading.NewSimilarityScorer(sm.config.SimilarityStrategy)
	if err != nil {
		return err
	}

	publisher := sm.config.EventPublisher
	if publisher == nil {
		publisher = events.NewNoopPublisher(sm.logger)
	}

	sm.examService = NewExamService(sm.repo, sm.logger, sm.validator)
	sm.logger.Info("Exam service initialized")

	opts := append([]AttemptOption{
		WithScorer(grading.NewScorer(similarity)),
		WithMetrics(sm.config.Metrics),
	}, sm.config.AttemptOptions...)
	sm.attemptService = NewAttemptService(sm.repo, sm.logger, sm.validator, publisher, opts...)
	sm.logger.Info("Attempt service initialized", "similarity", sm.config.SimilarityStrategy)

	sm.resultService = NewResultService(sm.repo, sm.logger, sm.validator, publisher)
	sm.logger.Info("Result service initialized")

	sm.studentService = NewStudentService(sm.repo, sm.logger, sm.validator)
	sm.logger.Info("Student service initialized")

	return nil
}

// Service getters
func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Result() ResultService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.resultService
}

func (sm *serviceManager) Student() StudentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.studentService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.config.EventPublisher != nil {
		if err := sm.config.EventPublisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
