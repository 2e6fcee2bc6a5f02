package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
)

// Store operation labels.
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// StudentRepository is implemented by the Postgres and the document store repositories.
type StudentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type storeObserver interface {
	ObserveStoreOperation(operation string, err error, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveStoreOperation(string, error, time.Duration) {}

// StudentService is the client of the student record store. It performs one-shot reads and writes
// without retries or caching; every backend failure surfaces as STORE_UNAVAILABLE.
type StudentService struct {
	repo      StudentRepository
	validator *validator.Validate
	metrics   storeObserver
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo StudentRepository, validate *validator.Validate, metrics storeObserver, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if metrics == nil {
		metrics = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, metrics: metrics, logger: logger}
}

// ListAll returns every persisted student in backend order. On failure the caller must treat the
// list as unknown, not empty.
func (s *StudentService) ListAll(ctx context.Context) ([]models.Student, error) {
	start := time.Now()
	students, err := s.repo.List(ctx)
	s.metrics.ObserveStoreOperation(OpList, err, time.Since(start))
	if err != nil {
		return nil, storeUnavailable(err, "failed to list students")
	}
	return students, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	start := time.Now()
	student, err := s.repo.FindByID(ctx, id)
	if isMissing(err) {
		s.metrics.ObserveStoreOperation(OpGet, nil, time.Since(start))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.metrics.ObserveStoreOperation(OpGet, err, time.Since(start))
	if err != nil {
		return nil, storeUnavailable(err, "failed to load student")
	}
	return student, nil
}

// Create persists a new student. Any identifier on the input is ignored; the store assigns one
// together with the creation timestamp.
func (s *StudentService) Create(ctx context.Context, input models.Student) (*models.Student, error) {
	student := input.Clone()
	student.ID = ""
	student.CreatedAt = nil
	if err := s.validator.Struct(student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	start := time.Now()
	err := s.repo.Create(ctx, &student)
	s.metrics.ObserveStoreOperation(OpCreate, err, time.Since(start))
	if err != nil {
		return nil, storeUnavailable(err, "failed to create student")
	}
	s.logger.Debug("student created", zap.String("student_id", student.ID))
	return &student, nil
}

// Update overwrites every field of the student at id except its creation timestamp. Existence is
// not checked: updating an unknown id is backend-defined and not reported.
func (s *StudentService) Update(ctx context.Context, id string, input models.Student) (*models.Student, error) {
	student := input.Clone()
	student.ID = id
	if err := s.validator.Struct(student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	start := time.Now()
	err := s.repo.Update(ctx, &student)
	s.metrics.ObserveStoreOperation(OpUpdate, err, time.Since(start))
	if err != nil {
		return nil, storeUnavailable(err, "failed to update student")
	}
	return &student, nil
}

// Delete removes the student permanently.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.metrics.ObserveStoreOperation(OpDelete, err, time.Since(start))
	if err != nil {
		return storeUnavailable(err, "failed to delete student")
	}
	return nil
}

func storeUnavailable(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}

func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments)
}
