package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/repository"
	"github.com/sitemilenibarros/backend/internal/schema"
)

// SchemaService manages per-event form schemas
type SchemaService interface {
	// Upsert validates and installs the schema for (eventID, modality)
	Upsert(ctx context.Context, eventID int64, req *dto.UpsertSchemaRequest) (*dto.SchemaResponse, error)

	// Get retrieves the schema for (eventID, modality), falling back to the
	// event's generic schema
	Get(ctx context.Context, eventID int64, modality string) (*dto.SchemaResponse, error)
}

type schemaService struct {
	schemaRepo repository.FormSchemaRepository
	logger     *zap.Logger
}

// NewSchemaService creates a new SchemaService
func NewSchemaService(schemaRepo repository.FormSchemaRepository, logger *zap.Logger) SchemaService {
	return &schemaService{schemaRepo: schemaRepo, logger: logger}
}

func (s *schemaService) Upsert(ctx context.Context, eventID int64, req *dto.UpsertSchemaRequest) (*dto.SchemaResponse, error) {
	sc := &schema.Schema{Fields: req.Fields}
	if errs := schema.ValidateDocument(sc); len(errs) > 0 {
		return nil, &ErrPayloadInvalid{Errors: errs}
	}

	if err := s.schemaRepo.Upsert(ctx, eventID, req.Modality, sc); err != nil {
		return nil, err
	}

	s.logger.Info("form schema installed",
		zap.Int64("event_id", eventID),
		zap.String("modality", req.Modality),
		zap.Int("fields", len(sc.Fields)),
	)
	return &dto.SchemaResponse{
		EventID:  eventID,
		Modality: req.Modality,
		Fields:   sc.Fields,
	}, nil
}

func (s *schemaService) Get(ctx context.Context, eventID int64, modality string) (*dto.SchemaResponse, error) {
	sc, err := s.schemaRepo.Get(ctx, eventID, modality)
	if err != nil {
		return nil, err
	}
	return &dto.SchemaResponse{
		EventID:  eventID,
		Modality: modality,
		Fields:   sc.Fields,
	}, nil
}
