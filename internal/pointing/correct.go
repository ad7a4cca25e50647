package pointing

import "math"

// Pixel is an (x, y) pixel location.
type Pixel struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Correct rotates xy by Theta about the origin, then subtracts the shift.
func Correct(xy Pixel, e Entry) Pixel {
	sin, cos := math.Sincos(e.Theta)
	return Pixel{
		X: xy.X*cos - xy.Y*sin - e.ShiftX,
		Y: xy.X*sin + xy.Y*cos - e.ShiftY,
	}
}

// Uncorrect is the inverse of Correct.
func Uncorrect(xy Pixel, e Entry) Pixel {
	sin, cos := math.Sincos(e.Theta)
	x := xy.X + e.ShiftX
	y := xy.Y + e.ShiftY
	return Pixel{
		X: x*cos + y*sin,
		Y: -x*sin + y*cos,
	}
}
