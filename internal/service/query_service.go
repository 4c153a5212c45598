package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnsphere/class-service/internal/models"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
)

type queryRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Query, error)
	ListByClassAndStudent(ctx context.Context, classID, studentID string) ([]models.Query, error)
	FindByID(ctx context.Context, classID, queryID string) (*models.Query, error)
	Create(ctx context.Context, q *models.Query) error
	Answer(ctx context.Context, classID, queryID, answer string) (bool, error)
}

// CreateQueryRequest captures a new student question.
type CreateQueryRequest struct {
	Question string `json:"question" validate:"required"`
}

// AnswerQueryRequest carries the teacher's answer.
type AnswerQueryRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// QueryService manages per-class questions and answers. Students raise
// questions in classes they belong to and see their own; the teacher sees
// every question and resolves them by answering.
type QueryService struct {
	repo      queryRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQueryService constructs QueryService.
func NewQueryService(repo queryRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *QueryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// Create raises a question in a class. Enrolled students only.
func (s *QueryService) Create(ctx context.Context, classID, callerID string, req CreateQueryRequest) (*models.Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query payload")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !class.HasStudent(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only enrolled students can raise questions")
	}

	q := &models.Query{ClassID: classID, StudentID: callerID, Question: req.Question}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create query")
	}
	return q, nil
}

// List returns class questions. The teacher sees every question; an enrolled
// student sees only their own.
func (s *QueryService) List(ctx context.Context, classID, callerID string) ([]models.Query, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	switch {
	case class.TeacherID == callerID:
		queries, err := s.repo.ListByClass(ctx, classID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queries")
		}
		return queries, nil
	case class.HasStudent(callerID):
		queries, err := s.repo.ListByClassAndStudent(ctx, classID, callerID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queries")
		}
		return queries, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this class")
	}
}

// Answer resolves a question. Teacher only.
func (s *QueryService) Answer(ctx context.Context, classID, queryID, callerID string, req AnswerQueryRequest) (*models.Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can answer questions")
	}

	answered, err := s.repo.Answer(ctx, classID, queryID, req.Answer)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to answer query")
	}
	if !answered {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "query not found")
	}

	q, err := s.repo.FindByID(ctx, classID, queryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load query")
	}
	return q, nil
}

func (s *QueryService) loadClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}
