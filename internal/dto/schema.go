package dto

import "github.com/sitemilenibarros/backend/internal/schema"

// UpsertSchemaRequest represents an admin request to install a form schema
// for an event, optionally specialized per modality.
type UpsertSchemaRequest struct {
	Modality string                  `json:"modality" binding:"omitempty,oneof=presencial online"`
	Fields   map[string]schema.Field `json:"fields" binding:"required"`
}

// SchemaResponse represents a stored form schema
type SchemaResponse struct {
	EventID  int64                   `json:"event_id"`
	Modality string                  `json:"modality,omitempty"`
	Fields   map[string]schema.Field `json:"fields"`
}

// ValidationErrorResponse carries the ordered validation errors of a rejected
// payload.
type ValidationErrorResponse struct {
	Errors []string `json:"errors"`
}
