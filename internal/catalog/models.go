package catalog

import (
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/paulmach/orb"
)

// Required catalog columns. Every other column is a header card.
const (
	ColumnFile  = "POST_FILE"
	ColumnCenX  = "POST_CENX"
	ColumnCenY  = "POST_CENY"
	ColumnSize1 = "POST_SIZE1"
	ColumnSize2 = "POST_SIZE2"
)

// DefaultMaxHeaderCards is the number of header columns a postcard catalog row carries.
const DefaultMaxHeaderCards = 146

var requiredColumns = []string{ColumnFile, ColumnCenX, ColumnCenY, ColumnSize1, ColumnSize2}

// ErrCatalogLoad is matched by every error returned from Load.
var ErrCatalogLoad = errors.New("catalog load failed")

// LoadError describes why a catalog could not be loaded.
type LoadError struct {
	Path string
	Row  int // 1-based data row, 0 when the failure is not row specific
	Err  error
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("failed to load catalog %s (row %d): %v", e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("failed to load catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrCatalogLoad }

// Record is one postcard: its file, its embedded WCS header cards and its
// footprint in the pointing-corrected pixel frame.
type Record struct {
	Index      int    // position in the catalog
	File       string // postcard FITS file name
	Header     *header.Header
	CenterX    float64
	CenterY    float64
	HalfWidth  float64
	HalfHeight float64
}

// Center returns the footprint center.
func (r Record) Center() orb.Point {
	return orb.Point{r.CenterX, r.CenterY}
}

// Bound returns the footprint [cx-hw, cx+hw] x [cy-hh, cy+hh].
func (r Record) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.CenterX - r.HalfWidth, r.CenterY - r.HalfHeight},
		Max: orb.Point{r.CenterX + r.HalfWidth, r.CenterY + r.HalfHeight},
	}
}

// Camera and chip identifiers, read from the CAMERA and CCD header cards when present.
func (r Record) Camera() (int, bool) { return r.Header.Int("CAMERA") }
func (r Record) Chip() (int, bool)   { return r.Header.Int("CCD") }
