package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnsphere/class-service/internal/models"
	appErrors "github.com/learnsphere/class-service/pkg/errors"
)

const classCodeLength = 6

// classCodeAlphabet avoids easily confused characters.
const classCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByCode(ctx context.Context, code string) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	AddStudent(ctx context.Context, classID, studentID string) (bool, error)
}

// CreateClassRequest captures creation payload.
type CreateClassRequest struct {
	Name    string `json:"name" validate:"required"`
	Section string `json:"section"`
}

// JoinClassRequest enrolls a student via the class join code.
type JoinClassRequest struct {
	ClassCode string `json:"classCode" validate:"required"`
}

// ClassService coordinates class CRUD and roster membership.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// ListByTeacher returns classes owned by the teacher.
func (s *ClassService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	classes, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// ListByStudent returns classes the student is enrolled in.
func (s *ClassService) ListByStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	classes, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Create adds a new class owned by the calling teacher. The meeting state
// starts idle at version 1.
func (s *ClassService) Create(ctx context.Context, teacherID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	code, err := generateClassCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate class code")
	}

	class := &models.Class{
		Name:      req.Name,
		Section:   req.Section,
		Code:      code,
		TeacherID: teacherID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Join enrolls a student in the class matching the join code. Joining a
// class the student already belongs to succeeds without a second insert.
func (s *ClassService) Join(ctx context.Context, studentID string, req JoinClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}

	class, err := s.repo.FindByCode(ctx, req.ClassCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class code not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	added, err := s.repo.AddStudent(ctx, class.ID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join class")
	}
	if added {
		class.StudentIDs = append(class.StudentIDs, studentID)
	}
	return class, nil
}

// Delete removes a class. Only the owning teacher may delete it.
func (s *ClassService) Delete(ctx context.Context, id, callerID string) error {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can delete the class")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func generateClassCode() (string, error) {
	buf := make([]byte, classCodeLength)
	max := big.NewInt(int64(len(classCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = classCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
