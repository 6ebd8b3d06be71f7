package models

import (
	"time"

	"github.com/google/uuid"
)

// Marker is a QR marker placed in a building, pointing at a converted model.
type Marker struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FileID        uuid.UUID `gorm:"type:uuid;index;not null" json:"file_id"`
	Building      string    `gorm:"not null" json:"building"`
	Room          string    `gorm:"not null" json:"room"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Z             float64   `json:"z"`
	YRot          float64   `json:"yrot"`
	FileReference string    `json:"file_reference"`
	Payload       string    `gorm:"not null" json:"payload"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
