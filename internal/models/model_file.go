package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelFile is an uploaded IFC model and the state of its conversion.
type ModelFile struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Filename         string    `gorm:"uniqueIndex;not null" json:"filename"`
	Stem             string    `gorm:"uniqueIndex;not null" json:"stem"`
	Path             string    `json:"-"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	Stage            string    `gorm:"index" json:"stage"`
	ConversionOutput string    `json:"conversion_output,omitempty"`
	ConversionError  string    `json:"conversion_error,omitempty"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	MeshPath         string    `json:"-"`
	ObjectCount      int       `json:"object_count"`
	MirrorKey        string    `json:"mirror_key,omitempty"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Converted reports whether the mesh is tagged and ready for download.
func (f *ModelFile) Converted() bool {
	return f.Stage == "tagged" && f.MeshPath != ""
}
