package pipeline

import (
	"context"
	"errors"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/lehigh-university-libraries/ellie/internal/resolver"
	"github.com/lehigh-university-libraries/ellie/internal/wcs"
)

// Error kinds reported in results and summaries.
const (
	KindCatalogLoad   = "catalog_load"
	KindPointingModel = "pointing_model_not_found"
	KindProjection    = "projection"
	KindNoPostcard    = "no_postcard_found"
	KindOutOfBounds   = "cutout_out_of_bounds"
	KindResolver      = "resolver"
	KindCanceled      = "canceled"
	KindOther         = "other"
)

// ErrorKind classifies err. A nil error has no kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, catalog.ErrCatalogLoad):
		return KindCatalogLoad
	case errors.Is(err, pointing.ErrModelNotFound):
		return KindPointingModel
	case errors.Is(err, wcs.ErrProjection):
		return KindProjection
	case errors.Is(err, locator.ErrNoPostcardFound):
		return KindNoPostcard
	case errors.Is(err, cutout.ErrOutOfBounds):
		return KindOutOfBounds
	case errors.Is(err, resolver.ErrUnknownSurvey), errors.Is(err, resolver.ErrNotConfigured), errors.Is(err, errResolve):
		return KindResolver
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindOther
}

// errResolve marks failures reported by the resolver service.
var errResolve = errors.New("failed to resolve target")
