package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnsphere/class-service/internal/models"
)

// QuickLinkRepository manages persistence for class quick links.
type QuickLinkRepository struct {
	db *sqlx.DB
}

// NewQuickLinkRepository constructs a new quick link repository.
func NewQuickLinkRepository(db *sqlx.DB) *QuickLinkRepository {
	return &QuickLinkRepository{db: db}
}

// ListByClass returns all quick links attached to a class.
func (r *QuickLinkRepository) ListByClass(ctx context.Context, classID string) ([]models.QuickLink, error) {
	const query = `SELECT id, class_id, title, url, created_at FROM quick_links WHERE class_id = $1 ORDER BY created_at ASC`
	var links []models.QuickLink
	if err := r.db.SelectContext(ctx, &links, query, classID); err != nil {
		return nil, fmt.Errorf("list quick links: %w", err)
	}
	return links, nil
}

// Create persists a quick link.
func (r *QuickLinkRepository) Create(ctx context.Context, link *models.QuickLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO quick_links (id, class_id, title, url, created_at) VALUES (:id, :class_id, :title, :url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create quick link: %w", err)
	}
	return nil
}

// Delete removes a quick link scoped to its class.
func (r *QuickLinkRepository) Delete(ctx context.Context, classID, linkID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM quick_links WHERE id = $1 AND class_id = $2`, linkID, classID); err != nil {
		return fmt.Errorf("delete quick link: %w", err)
	}
	return nil
}
