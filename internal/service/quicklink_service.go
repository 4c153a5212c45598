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

type quickLinkRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.QuickLink, error)
	Create(ctx context.Context, link *models.QuickLink) error
	Delete(ctx context.Context, classID, linkID string) error
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateQuickLinkRequest captures the quick link payload.
type CreateQuickLinkRequest struct {
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"required,url"`
}

// QuickLinkService manages per-class resource links.
type QuickLinkService struct {
	repo      quickLinkRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuickLinkService constructs QuickLinkService.
func NewQuickLinkService(repo quickLinkRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *QuickLinkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuickLinkService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns all quick links for a class.
func (s *QuickLinkService) List(ctx context.Context, classID string) ([]models.QuickLink, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quick links")
	}
	return links, nil
}

// Create attaches a quick link to a class. Teacher only.
func (s *QuickLinkService) Create(ctx context.Context, classID, callerID string, req CreateQuickLinkRequest) (*models.QuickLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quick link payload")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can manage quick links")
	}

	link := &models.QuickLink{ClassID: classID, Title: req.Title, URL: req.URL}
	if err := s.repo.Create(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quick link")
	}
	return link, nil
}

// Delete removes a quick link from a class. Teacher only.
func (s *QuickLinkService) Delete(ctx context.Context, classID, linkID, callerID string) error {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return err
	}
	if class.TeacherID != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can manage quick links")
	}

	if err := s.repo.Delete(ctx, classID, linkID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quick link")
	}
	return nil
}

func (s *QuickLinkService) loadClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}
