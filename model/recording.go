package model

import "time"

// MaxDescriptionLength bounds the free-text description of a recording.
const MaxDescriptionLength = 500

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat" gorm:"column:lat;not null"`
	Lng float64 `json:"lng" gorm:"column:lng;not null"`
}

// Valid reports whether the point lies inside the WGS84 domain.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// FileMetadata captures what we know about the uploaded bytes.
type FileMetadata struct {
	MimeType string `json:"mimetype" gorm:"column:mime_type;size:127"`
	Size     int64  `json:"size" gorm:"column:size_bytes"`
}

// Recording pairs a geographic point with a reference to stored audio bytes.
// Recordings are created by the upload endpoint and never updated.
type Recording struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	Location    Point        `json:"location" gorm:"embedded"`
	Description string       `json:"description" gorm:"size:500"`
	AudioURL    string       `json:"audioUrl" gorm:"size:767"`
	AudioKey    string       `json:"audioKey" gorm:"size:255;index"`
	Metadata    FileMetadata `json:"metadata" gorm:"embedded"`
	CreatedAt   time.Time    `json:"createdAt"`
}
