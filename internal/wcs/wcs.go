// Package wcs converts between sky and pixel coordinates for images whose
// headers describe a gnomonic (TAN) projection, optionally with SIP distortion.
package wcs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lehigh-university-libraries/ellie/internal/header"
)

// ErrProjection is matched by every header or coordinate failure.
var ErrProjection = errors.New("projection failed")

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi

	sipTolerance     = 1e-10
	sipMaxIterations = 50
)

// WCS is an immutable world coordinate system.
type WCS struct {
	crpix   [2]float64
	crval   [2]float64
	cd      [2][2]float64
	cdInv   [2][2]float64
	lonpole float64

	// Forward (pixel to intermediate) and optional inverse SIP polynomials.
	a, b   *poly
	ap, bp *poly
}

// FromHeader builds a WCS from header cards.
func FromHeader(h *header.Header) (*WCS, error) {
	ctype1 := strings.ToUpper(strings.TrimSpace(h.String("CTYPE1")))
	ctype2 := strings.ToUpper(strings.TrimSpace(h.String("CTYPE2")))
	if !strings.HasPrefix(ctype1, "RA--") || !strings.HasPrefix(ctype2, "DEC-") {
		return nil, fmt.Errorf("%w: unsupported axes %q/%q", ErrProjection, ctype1, ctype2)
	}
	sip1, ok1 := projectionCode(ctype1)
	sip2, ok2 := projectionCode(ctype2)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: unsupported projection %q/%q", ErrProjection, ctype1, ctype2)
	}

	w := &WCS{lonpole: 180}
	for i, key := range []string{"CRPIX1", "CRPIX2", "CRVAL1", "CRVAL2"} {
		v, ok := h.Float(key)
		if !ok {
			return nil, fmt.Errorf("%w: missing or invalid %s", ErrProjection, key)
		}
		if i < 2 {
			w.crpix[i] = v
		} else {
			w.crval[i-2] = v
		}
	}
	if h.Has("LONPOLE") {
		v, ok := h.Float("LONPOLE")
		if !ok {
			return nil, fmt.Errorf("%w: invalid LONPOLE", ErrProjection)
		}
		w.lonpole = v
	}

	cd, err := linearMatrix(h)
	if err != nil {
		return nil, err
	}
	det := cd[0][0]*cd[1][1] - cd[0][1]*cd[1][0]
	if det == 0 || math.IsNaN(det) {
		return nil, fmt.Errorf("%w: singular linear transform", ErrProjection)
	}
	w.cd = cd
	w.cdInv = [2][2]float64{
		{cd[1][1] / det, -cd[0][1] / det},
		{-cd[1][0] / det, cd[0][0] / det},
	}

	if sip1 || sip2 {
		if w.a, err = readPoly(h, "A"); err != nil {
			return nil, err
		}
		if w.b, err = readPoly(h, "B"); err != nil {
			return nil, err
		}
		if w.a == nil || w.b == nil {
			return nil, fmt.Errorf("%w: SIP projection without A_ORDER/B_ORDER", ErrProjection)
		}
		if w.ap, err = readPoly(h, "AP"); err != nil {
			return nil, err
		}
		if w.bp, err = readPoly(h, "BP"); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// projectionCode reports whether ctype ends in a supported TAN code and whether it carries SIP.
func projectionCode(ctype string) (sip bool, ok bool) {
	switch {
	case strings.HasSuffix(ctype, "-TAN-SIP"):
		return true, true
	case strings.HasSuffix(ctype, "-TAN"):
		return false, true
	}
	return false, false
}

// linearMatrix resolves CDi_j, then PCi_j with CDELTi, then CDELTi with CROTA2.
func linearMatrix(h *header.Header) ([2][2]float64, error) {
	var m [2][2]float64

	cdKeys := [2][2]string{{"CD1_1", "CD1_2"}, {"CD2_1", "CD2_2"}}
	if hasAny(h, cdKeys[0][0], cdKeys[0][1], cdKeys[1][0], cdKeys[1][1]) {
		for i := range 2 {
			for j := range 2 {
				v, err := optionalFloat(h, cdKeys[i][j], 0)
				if err != nil {
					return m, err
				}
				m[i][j] = v
			}
		}
		return m, nil
	}

	cdelt1, ok1 := h.Float("CDELT1")
	cdelt2, ok2 := h.Float("CDELT2")
	if !ok1 || !ok2 {
		return m, fmt.Errorf("%w: no CD matrix and no CDELT1/CDELT2", ErrProjection)
	}

	pcKeys := [2][2]string{{"PC1_1", "PC1_2"}, {"PC2_1", "PC2_2"}}
	if hasAny(h, pcKeys[0][0], pcKeys[0][1], pcKeys[1][0], pcKeys[1][1]) {
		cdelt := [2]float64{cdelt1, cdelt2}
		for i := range 2 {
			for j := range 2 {
				def := 0.0
				if i == j {
					def = 1
				}
				v, err := optionalFloat(h, pcKeys[i][j], def)
				if err != nil {
					return m, err
				}
				m[i][j] = cdelt[i] * v
			}
		}
		return m, nil
	}

	crota, err := optionalFloat(h, "CROTA2", 0)
	if err != nil {
		return m, err
	}
	sin, cos := math.Sincos(crota * deg2rad)
	m[0][0] = cdelt1 * cos
	m[0][1] = -cdelt2 * sin
	m[1][0] = cdelt1 * sin
	m[1][1] = cdelt2 * cos
	return m, nil
}

func hasAny(h *header.Header, keys ...string) bool {
	for _, k := range keys {
		if h.Has(k) {
			return true
		}
	}
	return false
}

func optionalFloat(h *header.Header, key string, def float64) (float64, error) {
	if !h.Has(key) {
		return def, nil
	}
	v, ok := h.Float(key)
	if !ok {
		return 0, fmt.Errorf("%w: invalid %s", ErrProjection, key)
	}
	return v, nil
}

// WorldToPixel projects (ra, dec) in degrees to pixel coordinates. origin is 1
// for FITS-style pixel indices and 0 for zero-based ones.
func (w *WCS) WorldToPixel(ra, dec float64, origin int) (float64, float64, error) {
	if !finite(ra) || !finite(dec) {
		return 0, 0, fmt.Errorf("%w: non-finite sky position (%g, %g)", ErrProjection, ra, dec)
	}
	if dec < -90 || dec > 90 {
		return 0, 0, fmt.Errorf("%w: declination %g out of range", ErrProjection, dec)
	}

	// Celestial to native spherical. cosθ·sin(φ−φp) = a and cosθ·cos(φ−φp) = b
	// are kept as products so the reference point stays well conditioned.
	alpha, delta := ra*deg2rad, dec*deg2rad
	alphaP, deltaP := w.crval[0]*deg2rad, w.crval[1]*deg2rad
	sinPP, cosPP := math.Sincos(w.lonpole * deg2rad)

	sinD, cosD := math.Sincos(delta)
	sinDP, cosDP := math.Sincos(deltaP)
	sinDA, cosDA := math.Sincos(alpha - alphaP)

	a := -cosD * sinDA
	b := sinD*cosDP - cosD*sinDP*cosDA
	sinTheta := sinD*sinDP + cosD*cosDP*cosDA
	if sinTheta <= 0 {
		return 0, 0, fmt.Errorf("%w: (%g, %g) is more than 90 degrees from the reference point", ErrProjection, ra, dec)
	}

	// Gnomonic projection to the plane, in degrees: x = R sinφ, y = −R cosφ, R = cotθ.
	x := rad2deg * (sinPP*b + cosPP*a) / sinTheta
	y := -rad2deg * (cosPP*b - sinPP*a) / sinTheta

	// Intermediate world to distorted pixel offsets.
	up := w.cdInv[0][0]*x + w.cdInv[0][1]*y
	vp := w.cdInv[1][0]*x + w.cdInv[1][1]*y

	u, v, err := w.undistort(up, vp)
	if err != nil {
		return 0, 0, err
	}

	offset := 1 - float64(origin)
	return u + w.crpix[0] - offset, v + w.crpix[1] - offset, nil
}

// PixelToWorld is the forward transform: pixel coordinates to (ra, dec) in degrees.
func (w *WCS) PixelToWorld(px, py float64, origin int) (float64, float64, error) {
	if !finite(px) || !finite(py) {
		return 0, 0, fmt.Errorf("%w: non-finite pixel (%g, %g)", ErrProjection, px, py)
	}

	offset := 1 - float64(origin)
	u := px + offset - w.crpix[0]
	v := py + offset - w.crpix[1]
	up, vp := w.distort(u, v)

	x := w.cd[0][0]*up + w.cd[0][1]*vp
	y := w.cd[1][0]*up + w.cd[1][1]*vp

	if x == 0 && y == 0 {
		return w.crval[0], w.crval[1], nil
	}

	// Plane to native spherical, again as products with cosθ.
	rho := math.Hypot(rad2deg, math.Hypot(x, y))
	sinT := rad2deg / rho
	sinPP, cosPP := math.Sincos(w.lonpole * deg2rad)
	cs := (x*cosPP + y*sinPP) / rho
	cc := (x*sinPP - y*cosPP) / rho

	// Native spherical to celestial.
	alphaP, deltaP := w.crval[0]*deg2rad, w.crval[1]*deg2rad
	sinDP, cosDP := math.Sincos(deltaP)

	num := sinT*cosDP - cc*sinDP
	delta := math.Atan2(sinT*sinDP+cc*cosDP, math.Hypot(cs, num))
	alpha := alphaP + math.Atan2(-cs, num)

	ra := math.Mod(alpha*rad2deg, 360)
	if ra < 0 {
		ra += 360
	}
	return ra, delta * rad2deg, nil
}

func (w *WCS) distort(u, v float64) (float64, float64) {
	if w.a == nil {
		return u, v
	}
	return u + w.a.eval(u, v), v + w.b.eval(u, v)
}

// undistort solves distort(u, v) = (up, vp) with Newton iterations, seeded by
// the AP/BP inverse polynomials when the header provides them.
func (w *WCS) undistort(up, vp float64) (float64, float64, error) {
	if w.a == nil {
		return up, vp, nil
	}

	u, v := up, vp
	if w.ap != nil && w.bp != nil {
		u = up + w.ap.eval(up, vp)
		v = vp + w.bp.eval(up, vp)
	}

	for range sipMaxIterations {
		fu := u + w.a.eval(u, v) - up
		fv := v + w.b.eval(u, v) - vp
		if math.Abs(fu) < sipTolerance && math.Abs(fv) < sipTolerance {
			return u, v, nil
		}

		adu, adv := w.a.grad(u, v)
		bdu, bdv := w.b.grad(u, v)
		j11, j12 := 1+adu, adv
		j21, j22 := bdu, 1+bdv
		det := j11*j22 - j12*j21
		if det == 0 || !finite(det) {
			break
		}
		u -= (j22*fu - j12*fv) / det
		v -= (-j21*fu + j11*fv) / det
	}

	return 0, 0, fmt.Errorf("%w: SIP inversion did not converge", ErrProjection)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
