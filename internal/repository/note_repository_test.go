package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

func TestListNotesOrderedByUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "category", "title", "info", "created_at", "updated_at"}).
		AddRow("n1", "u1", "other", "Groceries", "milk, eggs", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + noteColumns + " FROM notes WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 50")).
		WithArgs("u1").
		WillReturnRows(rows)

	notes, err := repo.List(context.Background(), "u1", "", nil, 50)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries", notes[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNote(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	mock.ExpectExec("UPDATE notes SET").WillReturnResult(sqlmock.NewResult(0, 1))

	note := &models.Note{ID: "n1", UserID: "u1", Category: "other", Title: "t", Info: "i"}
	require.NoError(t, repo.Update(context.Background(), note))
	assert.False(t, note.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
