package wcs

import (
	"fmt"
	"math"

	"github.com/lehigh-university-libraries/ellie/internal/header"
)

// poly is a SIP distortion polynomial sum(c[p][q] * u^p * v^q).
type poly struct {
	order int
	c     [][]float64
}

// readPoly reads <prefix>_ORDER and the <prefix>_p_q coefficients. A missing
// order card means no polynomial.
func readPoly(h *header.Header, prefix string) (*poly, error) {
	order, ok := h.Int(prefix + "_ORDER")
	if !ok {
		if h.Has(prefix + "_ORDER") {
			return nil, fmt.Errorf("%w: invalid %s_ORDER", ErrProjection, prefix)
		}
		return nil, nil
	}
	if order < 0 || order > 9 {
		return nil, fmt.Errorf("%w: %s_ORDER %d out of range", ErrProjection, prefix, order)
	}

	p := &poly{order: order, c: make([][]float64, order+1)}
	for i := range p.c {
		p.c[i] = make([]float64, order+1)
	}
	for i := 0; i <= order; i++ {
		for j := 0; i+j <= order; j++ {
			key := fmt.Sprintf("%s_%d_%d", prefix, i, j)
			if !h.Has(key) {
				continue
			}
			v, ok := h.Float(key)
			if !ok {
				return nil, fmt.Errorf("%w: invalid %s", ErrProjection, key)
			}
			p.c[i][j] = v
		}
	}
	return p, nil
}

func (p *poly) eval(u, v float64) float64 {
	if p == nil {
		return 0
	}
	var sum float64
	up := 1.0
	for i := 0; i <= p.order; i++ {
		vq := 1.0
		for j := 0; i+j <= p.order; j++ {
			sum += p.c[i][j] * up * vq
			vq *= v
		}
		up *= u
	}
	return sum
}

// grad returns the partial derivatives with respect to u and v.
func (p *poly) grad(u, v float64) (du, dv float64) {
	if p == nil {
		return 0, 0
	}
	for i := 0; i <= p.order; i++ {
		for j := 0; i+j <= p.order; j++ {
			c := p.c[i][j]
			if c == 0 {
				continue
			}
			if i > 0 {
				du += c * float64(i) * math.Pow(u, float64(i-1)) * math.Pow(v, float64(j))
			}
			if j > 0 {
				dv += c * float64(j) * math.Pow(u, float64(i)) * math.Pow(v, float64(j-1))
			}
		}
	}
	return du, dv
}
