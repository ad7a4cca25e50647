// Package photometry turns a cutout into a light curve.
package photometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/lehigh-university-libraries/ellie/internal/cutout"
)

// DefaultRadius is the aperture radius in pixels.
const DefaultRadius = 1.5

// LightCurve is one flux value per epoch.
type LightCurve struct {
	Epochs    []int     `json:"epochs" yaml:"epochs"`
	Raw       []float64 `json:"raw" yaml:"raw"`
	Corrected []float64 `json:"corrected" yaml:"corrected"`
}

// Len returns the number of epochs.
func (lc LightCurve) Len() int { return len(lc.Epochs) }

// Photometer measures a light curve from a cutout.
type Photometer interface {
	Measure(c *cutout.Cutout) (LightCurve, error)
}

// Aperture sums a circular aperture centered on the window and subtracts the
// median of the pixels outside it as background.
type Aperture struct {
	Radius float64
}

// NewAperture creates an aperture photometer. radius <= 0 selects DefaultRadius.
func NewAperture(radius float64) *Aperture {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Aperture{Radius: radius}
}

// Mask marks the pixels of a rows x cols window that fall inside the aperture.
func (a *Aperture) Mask(rows, cols int) []bool {
	cr, cc := float64(rows/2), float64(cols/2)
	r2 := a.Radius * a.Radius
	mask := make([]bool, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dr, dc := float64(r)-cr, float64(c)-cc
			mask[r*cols+c] = dr*dr+dc*dc <= r2
		}
	}
	return mask
}

func (a *Aperture) Measure(c *cutout.Cutout) (LightCurve, error) {
	if c == nil || c.Cube == nil {
		return LightCurve{}, fmt.Errorf("no cutout to measure")
	}
	cube := c.Cube
	if err := cube.Validate(); err != nil {
		return LightCurve{}, err
	}

	mask := a.Mask(cube.Rows, cube.Cols)
	inside := 0
	for _, in := range mask {
		if in {
			inside++
		}
	}
	if inside == 0 {
		return LightCurve{}, fmt.Errorf("aperture of radius %g covers no pixels", a.Radius)
	}

	lc := LightCurve{
		Epochs: make([]int, cube.Epochs),
		Raw:    make([]float64, cube.Epochs),
	}
	background := make([]float64, 0, len(mask)-inside)
	for e := 0; e < cube.Epochs; e++ {
		background = background[:0]
		var sum float64
		for i, v := range cube.Frame(e) {
			if mask[i] {
				sum += float64(v)
			} else {
				background = append(background, float64(v))
			}
		}
		if len(background) > 0 {
			sum -= float64(inside) * Median(background)
		}
		lc.Epochs[e] = e
		lc.Raw[e] = sum
	}
	lc.Corrected = Normalize(lc.Raw)
	return lc, nil
}

// Normalize divides a series by its median. A zero or undefined median
// leaves the values unchanged.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	m := Median(values)
	if m == 0 || math.IsNaN(m) {
		return out
	}
	for i := range out {
		out[i] /= m
	}
	return out
}

// Median ignores NaN values and returns NaN for an empty input.
func Median(values []float64) float64 {
	s := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			s = append(s, v)
		}
	}
	if len(s) == 0 {
		return math.NaN()
	}
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
