package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/metrics"
	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/lehigh-university-libraries/ellie/internal/resolver"
	"github.com/lehigh-university-libraries/ellie/internal/storage"
	"github.com/lehigh-university-libraries/ellie/internal/wcs"
)

// Service is the part of the pipeline the API needs.
type Service interface {
	Position(ctx context.Context, t pipeline.Target) (locator.SkyPosition, error)
	Locate(pos locator.SkyPosition) (locator.MatchResult, error)
	Run(ctx context.Context, t pipeline.Target) (pipeline.Result, error)
}

type Handler struct {
	lookupStore *storage.LookupStore
	service     Service
	metrics     *metrics.LookupMetrics
	productDir  string
	now         func() time.Time
}

// New creates the API handler. m may be nil; productDir is where products
// written by cutout lookups are served from.
func New(service Service, m *metrics.LookupMetrics, productDir string) *Handler {
	return &Handler{
		lookupStore: storage.New(),
		service:     service,
		metrics:     m,
		productDir:  productDir,
		now:         time.Now,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// statusFor maps a lookup failure onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, locator.ErrNoPostcardFound):
		return http.StatusNotFound
	case errors.Is(err, wcs.ErrProjection), errors.Is(err, cutout.ErrOutOfBounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resolver.ErrUnknownSurvey):
		return http.StatusBadRequest
	case pipeline.ErrorKind(err) == pipeline.KindResolver:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
