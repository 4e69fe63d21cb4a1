package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
	"github.com/noah-isme/dont-forgetter-api/pkg/response"
)

type noteService interface {
	Create(ctx context.Context, userID string, req dto.NoteRequest) (*models.Note, error)
	Update(ctx context.Context, userID, id string, req dto.NoteRequest) (*models.Note, error)
	Get(ctx context.Context, userID, id string) (*models.Note, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID, query string) ([]models.Note, error)
}

// NoteHandler serves the free-form note endpoints.
type NoteHandler struct {
	service noteService
}

// NewNoteHandler constructs the handler.
func NewNoteHandler(svc noteService) *NoteHandler {
	return &NoteHandler{service: svc}
}

// List godoc
// @Summary List notes
// @Description Lists the caller's notes, optionally narrowed by a filter expression such as not(equal(category,"work"))
// @Tags Notes
// @Produce json
// @Param query query string false "Filter expression"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	notes, err := h.service.List(c.Request.Context(), userID, req.Query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, notes)
}

// Get godoc
// @Summary Get note
// @Tags Notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes/{id} [get]
func (h *NoteHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	note, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Create godoc
// @Summary Create note
// @Description A blank title is derived from the first 50 characters of info
// @Tags Notes
// @Accept json
// @Produce json
// @Param payload body dto.NoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	note, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// Update godoc
// @Summary Update note
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param payload body dto.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes/{id} [put]
func (h *NoteHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	note, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// Delete godoc
// @Summary Delete note
// @Tags Notes
// @Param id path string true "Note ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
