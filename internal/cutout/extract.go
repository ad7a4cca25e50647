// Package cutout slices fixed-size pixel windows around a target from a
// postcard's multi-epoch pixel cube.
package cutout

import (
	"errors"
	"fmt"
	"math"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
)

// ErrOutOfBounds means the requested window does not fit in the postcard.
var ErrOutOfBounds = errors.New("cutout out of bounds")

// Window is the cutout size in pixels.
type Window struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DefaultWindow is the 9x9 cutout handed to photometry.
var DefaultWindow = Window{Width: 9, Height: 9}

// Square returns an n x n window.
func Square(n int) Window { return Window{Width: n, Height: n} }

// BoundsError records where a window fell outside a postcard.
type BoundsError struct {
	File             string
	CenterX, CenterY int
	Row0, Col0       int
	Window           Window
	Rows, Cols       int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: %dx%d window at (%d, %d) in %s spans rows %d..%d, cols %d..%d of a %dx%d postcard",
		ErrOutOfBounds, e.Window.Width, e.Window.Height, e.CenterX, e.CenterY, e.File,
		e.Row0, e.Row0+e.Window.Height-1, e.Col0, e.Col0+e.Window.Width-1, e.Rows, e.Cols)
}

func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// Cutout is the extracted window across every epoch.
type Cutout struct {
	Cube *Cube
	// Local pixel center in the postcard that the window is centered on.
	CenterX int
	CenterY int
	// First row and column of the window in the postcard.
	Row0 int
	Col0 int
}

// LocalCenter converts a corrected pixel coordinate into the postcard's own
// pixel grid, rounding up.
func LocalCenter(rec catalog.Record, xy pointing.Pixel) (int, int, error) {
	dx := xy.X - rec.CenterX
	dy := xy.Y - rec.CenterY
	lx := math.Ceil(rec.HalfWidth + dx)
	ly := math.Ceil(rec.HalfHeight + dy)
	if math.IsNaN(lx) || math.IsNaN(ly) || math.Abs(lx) > math.MaxInt32 || math.Abs(ly) > math.MaxInt32 {
		return 0, 0, fmt.Errorf("%w: invalid local center (%g, %g) in %s", ErrOutOfBounds, lx, ly, rec.File)
	}
	return int(lx), int(ly), nil
}

// Extract slices a window centered on xy from every epoch of src. Rows follow
// y and columns follow x; a window of n spans center-n/2 .. center-n/2+n-1.
func Extract(src *Cube, rec catalog.Record, xy pointing.Pixel, win Window) (*Cutout, error) {
	if win.Width <= 0 || win.Height <= 0 {
		return nil, fmt.Errorf("invalid cutout window %dx%d", win.Width, win.Height)
	}
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postcard %s: %w", rec.File, err)
	}

	lx, ly, err := LocalCenter(rec, xy)
	if err != nil {
		return nil, err
	}

	row0 := ly - win.Height/2
	col0 := lx - win.Width/2
	if row0 < 0 || col0 < 0 || row0+win.Height > src.Rows || col0+win.Width > src.Cols {
		return nil, &BoundsError{
			File:    rec.File,
			CenterX: lx,
			CenterY: ly,
			Row0:    row0,
			Col0:    col0,
			Window:  win,
			Rows:    src.Rows,
			Cols:    src.Cols,
		}
	}

	dst := NewCube(src.Epochs, win.Height, win.Width)
	for e := 0; e < src.Epochs; e++ {
		for r := 0; r < win.Height; r++ {
			from := src.offset(e, row0+r, col0)
			to := dst.offset(e, r, 0)
			copy(dst.Data[to:to+win.Width], src.Data[from:from+win.Width])
		}
	}

	return &Cutout{
		Cube:    dst,
		CenterX: lx,
		CenterY: ly,
		Row0:    row0,
		Col0:    col0,
	}, nil
}
