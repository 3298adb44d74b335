package repositories

import "context"

// Repository aggregates every repository the exam service uses
type Repository interface {
	// Exam domain
	Exam() ExamRepository
	Question() QuestionRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository
	Result() ResultRepository

	// People
	Student() StudentRepository
	User() UserRepository

	// WithTransaction runs fn against a repository bound to one database
	// transaction. fn returning an error rolls everything back.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
