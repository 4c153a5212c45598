package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnsphere/class-service/internal/models"
)

const queryColumns = "id, class_id, student_id, question, answer, resolved, created_at"

// QueryRepository manages persistence for class questions.
type QueryRepository struct {
	db *sqlx.DB
}

// NewQueryRepository constructs a new query repository.
func NewQueryRepository(db *sqlx.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// ListByClass returns all questions raised in a class, oldest first.
func (r *QueryRepository) ListByClass(ctx context.Context, classID string) ([]models.Query, error) {
	query := fmt.Sprintf("SELECT %s FROM queries WHERE class_id = $1 ORDER BY created_at ASC", queryColumns)
	var queries []models.Query
	if err := r.db.SelectContext(ctx, &queries, query, classID); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return queries, nil
}

// ListByClassAndStudent returns the questions one student raised in a class.
func (r *QueryRepository) ListByClassAndStudent(ctx context.Context, classID, studentID string) ([]models.Query, error) {
	query := fmt.Sprintf("SELECT %s FROM queries WHERE class_id = $1 AND student_id = $2 ORDER BY created_at ASC", queryColumns)
	var queries []models.Query
	if err := r.db.SelectContext(ctx, &queries, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("list student queries: %w", err)
	}
	return queries, nil
}

// FindByID returns a question scoped to its class.
func (r *QueryRepository) FindByID(ctx context.Context, classID, queryID string) (*models.Query, error) {
	query := fmt.Sprintf("SELECT %s FROM queries WHERE id = $1 AND class_id = $2", queryColumns)
	var q models.Query
	if err := r.db.GetContext(ctx, &q, query, queryID, classID); err != nil {
		return nil, err
	}
	return &q, nil
}

// Create persists a new, unresolved question.
func (r *QueryRepository) Create(ctx context.Context, q *models.Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO queries (id, class_id, student_id, question, answer, resolved, created_at)
		VALUES (:id, :class_id, :student_id, :question, :answer, :resolved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, q); err != nil {
		return fmt.Errorf("create query: %w", err)
	}
	return nil
}

// Answer stores the answer and marks the question resolved. Returns false
// when no question matched the class and ID.
func (r *QueryRepository) Answer(ctx context.Context, classID, queryID, answer string) (bool, error) {
	const query = `UPDATE queries SET answer = $3, resolved = TRUE WHERE id = $1 AND class_id = $2`
	res, err := r.db.ExecContext(ctx, query, queryID, classID, answer)
	if err != nil {
		return false, fmt.Errorf("answer query: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("answer query: %w", err)
	}
	return affected > 0, nil
}
