package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

const noteTitleLength = 50

type noteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	GetForUser(ctx context.Context, id, userID string) (*models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	DeleteForUser(ctx context.Context, id, userID string) error
	List(ctx context.Context, userID, where string, args []interface{}, limit int) ([]models.Note, error)
}

// NoteService manages free-form notes.
type NoteService struct {
	repo      noteRepository
	listLimit int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoteService constructs the service.
func NewNoteService(repo noteRepository, listLimit int, validate *validator.Validate, logger *zap.Logger) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if listLimit <= 0 {
		listLimit = 50
	}
	return &NoteService{repo: repo, listLimit: listLimit, validator: validate, logger: logger}
}

// Create stores a note.
func (s *NoteService) Create(ctx context.Context, userID string, req dto.NoteRequest) (*models.Note, error) {
	note := &models.Note{UserID: userID}
	if err := s.apply(note, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}
	return note, nil
}

// Update rewrites a note.
func (s *NoteService) Update(ctx context.Context, userID, id string, req dto.NoteRequest) (*models.Note, error) {
	note, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(note, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note")
	}
	return note, nil
}

// Get returns a note owned by the user.
func (s *NoteService) Get(ctx context.Context, userID, id string) (*models.Note, error) {
	note, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	return note, nil
}

// Delete removes a note owned by the user.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteForUser(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}
	return nil
}

// List returns the user's notes, most recently edited first.
func (s *NoteService) List(ctx context.Context, userID, query string) ([]models.Note, error) {
	where, args, err := compileFilter(query, repository.NoteFilterColumns)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.List(ctx, userID, where, args, s.listLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes, nil
}

func (s *NoteService) apply(note *models.Note, req dto.NoteRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid note payload")
	}
	note.Category = firstNonEmpty(strings.TrimSpace(req.Category), models.DefaultCategory)
	note.Info = req.Info
	note.Title = strings.TrimSpace(req.Title)
	if note.Title == "" {
		note.Title = NoteTitle(req.Info)
	}
	return nil
}

// NoteTitle derives a title from the first 50 characters of info.
func NoteTitle(info string) string {
	runes := []rune(strings.TrimSpace(info))
	if len(runes) <= noteTitleLength {
		return string(runes)
	}
	return string(runes[:noteTitleLength]) + "..."
}
