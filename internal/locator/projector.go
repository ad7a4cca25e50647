package locator

import (
	"fmt"
	"sync"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/lehigh-university-libraries/ellie/internal/wcs"
)

// SkyPosition is a right ascension / declination pair in degrees.
type SkyPosition struct {
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

func (p SkyPosition) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.RA, p.Dec)
}

// Projector maps a sky position into a postcard's raw pixel frame.
type Projector interface {
	Project(rec catalog.Record, pos SkyPosition) (pointing.Pixel, error)
}

// Unprojector maps a postcard's raw pixel back onto the sky.
type Unprojector interface {
	Unproject(rec catalog.Record, xy pointing.Pixel) (SkyPosition, error)
}

type systemKey struct {
	index int
	file  string
}

type system struct {
	w   *wcs.WCS
	err error
}

// WCSProjector builds each record's WCS on first use and reuses it afterwards.
type WCSProjector struct {
	mu      sync.RWMutex
	systems map[systemKey]system
}

func NewWCSProjector() *WCSProjector {
	return &WCSProjector{systems: make(map[systemKey]system)}
}

// Project applies the record's world-to-pixel transform with 1-based pixels.
func (p *WCSProjector) Project(rec catalog.Record, pos SkyPosition) (pointing.Pixel, error) {
	w, err := p.system(rec)
	if err != nil {
		return pointing.Pixel{}, err
	}
	x, y, err := w.WorldToPixel(pos.RA, pos.Dec, 1)
	if err != nil {
		return pointing.Pixel{}, fmt.Errorf("postcard %s: %w", rec.File, err)
	}
	return pointing.Pixel{X: x, Y: y}, nil
}

// Unproject is the inverse of Project.
func (p *WCSProjector) Unproject(rec catalog.Record, xy pointing.Pixel) (SkyPosition, error) {
	w, err := p.system(rec)
	if err != nil {
		return SkyPosition{}, err
	}
	ra, dec, err := w.PixelToWorld(xy.X, xy.Y, 1)
	if err != nil {
		return SkyPosition{}, fmt.Errorf("postcard %s: %w", rec.File, err)
	}
	return SkyPosition{RA: ra, Dec: dec}, nil
}

func (p *WCSProjector) system(rec catalog.Record) (*wcs.WCS, error) {
	key := systemKey{index: rec.Index, file: rec.File}

	p.mu.RLock()
	s, ok := p.systems[key]
	p.mu.RUnlock()
	if !ok {
		w, err := wcs.FromHeader(rec.Header)
		s = system{w: w, err: err}

		p.mu.Lock()
		p.systems[key] = s
		p.mu.Unlock()
	}

	if s.err != nil {
		return nil, fmt.Errorf("postcard %s: %w", rec.File, s.err)
	}
	return s.w, nil
}
