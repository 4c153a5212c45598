package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestQueryRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewQueryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "question", "answer", "resolved", "created_at"}).
		AddRow("q1", "class-1", "student-1", "When is the exam?", nil, false, time.Now()).
		AddRow("q2", "class-1", "student-2", "Is chapter 4 included?", "Yes", true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+queryColumns+" FROM queries WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(rows)

	queries, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, queries, 2)
	require.False(t, queries[0].Resolved)
	require.True(t, queries[1].Resolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepositoryAnswer(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewQueryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE queries SET answer = $3, resolved = TRUE WHERE id = $1 AND class_id = $2")).
		WithArgs("q1", "class-1", "Friday").
		WillReturnResult(sqlmock.NewResult(0, 1))

	answered, err := repo.Answer(context.Background(), "class-1", "q1", "Friday")
	require.NoError(t, err)
	require.True(t, answered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepositoryAnswerMissingQuery(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewQueryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE queries SET answer = $3, resolved = TRUE WHERE id = $1 AND class_id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	answered, err := repo.Answer(context.Background(), "class-1", "missing", "Friday")
	require.NoError(t, err)
	require.False(t, answered)
	require.NoError(t, mock.ExpectationsWereMet())
}
