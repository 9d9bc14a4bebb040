package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/repository"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/pkg/response"
)

// SchemaHandler handles form schema HTTP requests
type SchemaHandler struct {
	schemaService service.SchemaService
}

// NewSchemaHandler creates a new SchemaHandler
func NewSchemaHandler(schemaService service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService}
}

// Upsert installs or replaces an event's form schema
// POST /form-schemas/:eventId
func (h *SchemaHandler) Upsert(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}

	var req dto.UpsertSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.schemaService.Upsert(c.Request.Context(), eventID, &req)
	if err != nil {
		var invalid *service.ErrPayloadInvalid
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, response.ValidationFailed(invalid.Errors))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// Get retrieves an event's form schema
// GET /form-schemas/:eventId
func (h *SchemaHandler) Get(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}

	result, err := h.schemaService.Get(c.Request.Context(), eventID, c.Query("modality"))
	if err != nil {
		if errors.Is(err, repository.ErrSchemaNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Schema not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}
