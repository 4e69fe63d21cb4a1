package dto

// NoteRequest is the writable part of a note.
type NoteRequest struct {
	Category string `json:"category" validate:"omitempty,max=255"`
	Title    string `json:"title" validate:"omitempty,max=255"`
	Info     string `json:"info" validate:"required,max=3000"`
}
