package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ifc-service/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the given key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// FileRepository stores uploaded model records.
type FileRepository interface {
	Create(ctx context.Context, file *models.ModelFile) error
	Get(ctx context.Context, id uuid.UUID) (*models.ModelFile, error)
	GetByFilename(ctx context.Context, filename string) (*models.ModelFile, error)
	List(ctx context.Context) ([]models.ModelFile, error)
	Update(ctx context.Context, file *models.ModelFile) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// MarkerRepository stores QR markers.
type MarkerRepository interface {
	Create(ctx context.Context, marker *models.Marker) error
	Get(ctx context.Context, id uuid.UUID) (*models.Marker, error)
	List(ctx context.Context) ([]models.Marker, error)
	ListByFile(ctx context.Context, fileID uuid.UUID) ([]models.Marker, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByFile(ctx context.Context, fileID uuid.UUID) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}
