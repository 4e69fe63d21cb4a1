package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

const noteColumns = `id, user_id, category, title, info, created_at, updated_at`

// NoteFilterColumns lists the fields accepted by the note list filter.
var NoteFilterColumns = map[string]string{
	"id":         "id",
	"category":   "category",
	"title":      "title",
	"info":       "info",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// NoteRepository persists notes.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository constructs the repository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a note.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	const query = `INSERT INTO notes (` + noteColumns + `) VALUES (:id, :user_id, :category, :title, :info, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// GetForUser returns an owned note.
func (r *NoteRepository) GetForUser(ctx context.Context, id, userID string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND user_id = $2`
	var note models.Note
	if err := r.db.GetContext(ctx, &note, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &note, nil
}

// Update rewrites an owned note.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notes SET category = :category, title = :title, info = :info, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, note)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return expectAffected(res, "update note")
}

// DeleteForUser removes an owned note.
func (r *NoteRepository) DeleteForUser(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return expectAffected(res, "delete note")
}

// List returns a user's notes, most recently edited first.
func (r *NoteRepository) List(ctx context.Context, userID, where string, args []interface{}, limit int) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = $1`
	if where != "" {
		query += " AND (" + where + ")"
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", limit)

	params := append([]interface{}{userID}, args...)
	var notes []models.Note
	if err := r.db.SelectContext(ctx, &notes, query, params...); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}
