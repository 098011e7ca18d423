package dto

import "github.com/google/uuid"

// EnrollForm is the multipart form accompanying the enrollment image.
type EnrollForm struct {
	Name           string `form:"name" binding:"required"`
	ContactNumber  string `form:"contact_number"`
	DocumentNumber string `form:"document_number"`
	RequestType    string `form:"request_type"`
}

type RecordResponse struct {
	FaceID         uuid.UUID `json:"face_id"`
	Name           string    `json:"name"`
	ContactNumber  string    `json:"contact_number,omitempty"`
	DocumentNumber string    `json:"document_number,omitempty"`
	RequestType    string    `json:"request_type,omitempty"`
	ImageID        string    `json:"image_id,omitempty"`
	CreatedAt      string    `json:"created_at"`
}

// RelinkRequest retries the identity link for a dangling descriptor.
type RelinkRequest struct {
	Name           string `json:"name" binding:"required"`
	ContactNumber  string `json:"contact_number"`
	DocumentNumber string `json:"document_number"`
	RequestType    string `json:"request_type"`
}
