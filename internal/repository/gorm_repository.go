package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ifc-service/internal/models"
)

// AutoMigrate creates or updates the tables used by the gorm repositories.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ModelFile{}, &models.Marker{})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// GormFileRepository provides methods to interact with the ModelFile model in the database.
type GormFileRepository struct {
	db *gorm.DB
}

// NewGormFileRepository creates a new GormFileRepository with the provided GORM database connection.
func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

// Create inserts a new ModelFile.
func (r *GormFileRepository) Create(ctx context.Context, file *models.ModelFile) error {
	return translate(r.db.WithContext(ctx).Create(file).Error)
}

// Get retrieves a ModelFile by its ID.
func (r *GormFileRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelFile, error) {
	var file models.ModelFile
	if err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// GetByFilename retrieves a ModelFile by its sanitized upload name.
func (r *GormFileRepository) GetByFilename(ctx context.Context, filename string) (*models.ModelFile, error) {
	var file models.ModelFile
	if err := r.db.WithContext(ctx).First(&file, "filename = ?", filename).Error; err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// List retrieves all ModelFiles, oldest first.
func (r *GormFileRepository) List(ctx context.Context) ([]models.ModelFile, error) {
	var files []models.ModelFile
	err := r.db.WithContext(ctx).Order("uploaded_at asc").Find(&files).Error
	return files, err
}

// Update saves every field of an existing ModelFile.
func (r *GormFileRepository) Update(ctx context.Context, file *models.ModelFile) error {
	res := r.db.WithContext(ctx).Model(file).Select("*").Updates(file)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a ModelFile by its ID.
func (r *GormFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.ModelFile{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every ModelFile and returns how many were removed.
func (r *GormFileRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ModelFile{})
	return res.RowsAffected, res.Error
}

// GormMarkerRepository provides methods to interact with the Marker model in the database.
type GormMarkerRepository struct {
	db *gorm.DB
}

// NewGormMarkerRepository creates a new GormMarkerRepository with the provided GORM database connection.
func NewGormMarkerRepository(db *gorm.DB) *GormMarkerRepository {
	return &GormMarkerRepository{db: db}
}

// Create inserts a new Marker.
func (r *GormMarkerRepository) Create(ctx context.Context, marker *models.Marker) error {
	return translate(r.db.WithContext(ctx).Create(marker).Error)
}

// Get retrieves a Marker by its ID.
func (r *GormMarkerRepository) Get(ctx context.Context, id uuid.UUID) (*models.Marker, error) {
	var marker models.Marker
	if err := r.db.WithContext(ctx).First(&marker, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &marker, nil
}

// List retrieves all Markers, oldest first.
func (r *GormMarkerRepository) List(ctx context.Context) ([]models.Marker, error) {
	var markers []models.Marker
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&markers).Error
	return markers, err
}

// ListByFile retrieves the Markers that point at a file.
func (r *GormMarkerRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]models.Marker, error) {
	var markers []models.Marker
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Order("created_at asc").Find(&markers).Error
	return markers, err
}

// Delete removes a Marker by its ID.
func (r *GormMarkerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Marker{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByFile removes the Markers that point at a file.
func (r *GormMarkerRepository) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&models.Marker{})
	return res.RowsAffected, res.Error
}

// DeleteAll removes every Marker.
func (r *GormMarkerRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Marker{})
	return res.RowsAffected, res.Error
}
