package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/learnsphere/class-service/internal/models"
)

const classColumns = "id, name, section, code, teacher_id, student_ids, is_live, meeting_room_id, meeting_started_at, meeting_started_by, meeting_version, created_at, updated_at"

// ClassRepository manages persistence for classes, including the embedded
// meeting state. Meeting fields are only ever written through
// ConditionalUpdateMeeting.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", classColumns, base, size, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByCode returns a class by its join code.
func (r *ClassRepository) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE code = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, code); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByTeacher returns the classes owned by a teacher.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE teacher_id = $1 ORDER BY created_at DESC", classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classes by teacher: %w", err)
	}
	return classes, nil
}

// ListByStudent returns the classes a student is enrolled in.
func (r *ClassRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE student_ids @> $1 ORDER BY created_at DESC", classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, pq.StringArray{studentID}); err != nil {
		return nil, fmt.Errorf("list classes by student: %w", err)
	}
	return classes, nil
}

// Create persists a class record with an idle meeting state.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	if class.Version == 0 {
		class.Version = 1
	}
	if class.StudentIDs == nil {
		class.StudentIDs = pq.StringArray{}
	}

	const query = `INSERT INTO classes (id, name, section, code, teacher_id, student_ids, is_live, meeting_room_id, meeting_started_at, meeting_started_by, meeting_version, created_at, updated_at)
		VALUES (:id, :name, :section, :code, :teacher_id, :student_ids, :is_live, :meeting_room_id, :meeting_started_at, :meeting_started_by, :meeting_version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Delete removes a class record.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// AddStudent appends a student to the roster if not already present.
// Returns false when the student was already enrolled.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `UPDATE classes SET student_ids = array_append(student_ids, $2), updated_at = $3 WHERE id = $1 AND NOT (student_ids @> $4)`
	res, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC(), pq.StringArray{studentID})
	if err != nil {
		return false, fmt.Errorf("add student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add student: %w", err)
	}
	return affected > 0, nil
}

// ConditionalUpdateMeeting writes the full meeting state in a single
// statement guarded by the expected version. It returns false without error
// when the stored version no longer matches, which signals that a concurrent
// transition committed first.
func (r *ClassRepository) ConditionalUpdateMeeting(ctx context.Context, classID string, expectedVersion int64, state models.MeetingState) (bool, error) {
	const query = `UPDATE classes
		SET is_live = $1, meeting_room_id = $2, meeting_started_at = $3, meeting_started_by = $4, meeting_version = $5, updated_at = $6
		WHERE id = $7 AND meeting_version = $8`
	res, err := r.db.ExecContext(ctx, query,
		state.IsLive, state.RoomID, state.StartedAt, state.StartedBy, state.Version,
		time.Now().UTC(), classID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("conditional meeting update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conditional meeting update: %w", err)
	}
	return affected > 0, nil
}

// Exists is a lightweight existence probe.
func (r *ClassRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1 FROM classes WHERE id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class exists: %w", err)
	}
	return true, nil
}
