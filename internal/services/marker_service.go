package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ifc-service/internal/marker"
	"ifc-service/internal/models"
	"ifc-service/internal/repository"
)

// MarkerService places QR markers for converted models.
type MarkerService struct {
	markers     repository.MarkerRepository
	files       repository.FileRepository
	downloadURL func(fileID string) string
	logger      *zap.Logger
}

// NewMarkerService creates a MarkerService. downloadURL builds the file
// reference embedded in each payload.
func NewMarkerService(markers repository.MarkerRepository, files repository.FileRepository, downloadURL func(string) string, logger *zap.Logger) *MarkerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkerService{markers: markers, files: files, downloadURL: downloadURL, logger: logger}
}

// CreateMarker encodes and stores a marker pointing at an existing file.
func (s *MarkerService) CreateMarker(ctx context.Context, req models.MarkerRequest) (*models.Marker, error) {
	fileID, err := parseID(req.FileID)
	if err != nil {
		return nil, err
	}
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	p := marker.Payload{
		Building:      strings.TrimSpace(req.Building),
		Room:          strings.TrimSpace(req.Room),
		X:             req.X,
		Y:             req.Y,
		Z:             req.Z,
		YRot:          req.YRot,
		FileReference: s.downloadURL(file.ID.String()),
	}
	payload, err := marker.Encode(p)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	m := &models.Marker{
		ID:            uuid.New(),
		FileID:        file.ID,
		Building:      p.Building,
		Room:          p.Room,
		X:             p.X,
		Y:             p.Y,
		Z:             p.Z,
		YRot:          p.YRot,
		FileReference: p.FileReference,
		Payload:       payload,
	}
	if err := s.markers.Create(ctx, m); err != nil {
		return nil, errors.Wrap(err, "insert marker")
	}
	s.logger.Info("marker created",
		zap.String("id", m.ID.String()),
		zap.String("file_id", file.ID.String()),
		zap.String("building", m.Building),
		zap.String("room", m.Room))
	return m, nil
}

// GetMarker returns the marker with the given id.
func (s *MarkerService) GetMarker(ctx context.Context, id string) (*models.Marker, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.markers.Get(ctx, parsed)
}

// ListMarkers returns all markers, or those of one file when fileID is set.
func (s *MarkerService) ListMarkers(ctx context.Context, fileID string) ([]models.Marker, error) {
	if fileID == "" {
		markers, err := s.markers.List(ctx)
		return markers, errors.Wrap(err, "list markers")
	}
	parsed, err := parseID(fileID)
	if err != nil {
		return nil, err
	}
	markers, err := s.markers.ListByFile(ctx, parsed)
	return markers, errors.Wrap(err, "list markers")
}

// DeleteMarker removes a marker.
func (s *MarkerService) DeleteMarker(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	return s.markers.Delete(ctx, parsed)
}

// DecodePayload parses a scanned QR payload.
func (s *MarkerService) DecodePayload(payload string) (*marker.Payload, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "payload is required")
	}
	p, err := marker.Decode(payload)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return p, nil
}
