package repository

import (
	"context"
	"errors"

	"soundscape/model"
)

// ErrNotFound is returned when a recording id does not exist in the catalog.
var ErrNotFound = errors.New("recording not found")

// BoundingBox is an axis-aligned rectangle used to filter recordings by
// location. Coordinates follow the west,south,east,north query convention.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(p model.Point) bool {
	return p.Lng >= b.West && p.Lng <= b.East && p.Lat >= b.South && p.Lat <= b.North
}

// ListFilter bounds a List call. A nil BBox means no spatial filter.
type ListFilter struct {
	BBox   *BoundingBox
	Limit  int
	Offset int
}

// RecordingRepository defines the catalog contract. List returns matching
// recordings newest-first along with the total match count before pagination.
type RecordingRepository interface {
	Create(ctx context.Context, rec *model.Recording) error
	GetByID(ctx context.Context, id string) (*model.Recording, error)
	List(ctx context.Context, filter ListFilter) ([]*model.Recording, int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
