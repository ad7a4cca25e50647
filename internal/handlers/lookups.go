package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/ellie/internal/models"
	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
)

func (h *Handler) HandleLookups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, h.lookupStore.List())
	case http.MethodPost:
		h.createLookup(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleLookupDetail(w http.ResponseWriter, r *http.Request) {
	lookupID := strings.TrimPrefix(r.URL.Path, "/api/lookups/")

	lookup, exists := h.lookupStore.Get(lookupID)
	if !exists {
		h.writeError(w, "Lookup not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, lookup)
	case http.MethodDelete:
		h.lookupStore.Delete(lookupID)
		h.metrics.SetStoredLookups(h.lookupStore.Len())
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func targetFrom(req models.LookupRequest) (pipeline.Target, error) {
	t := pipeline.Target{ID: req.ID, Survey: req.Survey, RA: req.RA, Dec: req.Dec}
	if err := t.Validate(); err != nil {
		return t, err
	}
	if t.HasPosition() && (*t.Dec < -90 || *t.Dec > 90) {
		return t, fmt.Errorf("dec %g is outside [-90, 90]", *t.Dec)
	}
	return t, nil
}

func (h *Handler) createLookup(w http.ResponseWriter, r *http.Request) {
	var req models.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	target, err := targetFrom(req)
	if err != nil {
		h.writeError(w, "Invalid lookup: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := h.now()
	lookup := &models.Lookup{
		ID:        uuid.NewString(),
		Status:    models.StatusFound,
		CreatedAt: start,
	}

	err = h.runLookup(r, target, req.Cutout, lookup)
	if err != nil {
		lookup.Status = models.StatusFailed
		lookup.Error = err.Error()
		lookup.ErrorKind = pipeline.ErrorKind(err)
	}
	h.metrics.RecordLookup(lookup.ErrorKind, len(lookup.Candidates), h.now().Sub(start))

	h.lookupStore.Set(lookup.ID, lookup)
	h.metrics.SetStoredLookups(h.lookupStore.Len())

	if err != nil {
		slog.Warn("Lookup failed", "id", lookup.ID, "kind", lookup.ErrorKind, "err", err)
		h.writeJSONStatus(w, statusFor(err), lookup)
		return
	}
	slog.Info("Lookup created", "id", lookup.ID, "postcard", lookup.Postcard)
	w.Header().Set("Location", "/api/lookups/"+lookup.ID)
	h.writeJSONStatus(w, http.StatusCreated, lookup)
}

func (h *Handler) runLookup(r *http.Request, target pipeline.Target, withCutout bool, lookup *models.Lookup) error {
	pos, err := h.service.Position(r.Context(), target)
	if err != nil {
		return err
	}
	lookup.RA, lookup.Dec = pos.RA, pos.Dec

	match, err := h.service.Locate(pos)
	if err != nil {
		return err
	}
	lookup.Postcard = match.Record.File
	lookup.Raw = match.Raw
	lookup.Corrected = match.Corrected
	lookup.Distance = match.Distance
	lookup.Candidates = match.Candidates

	if !withCutout {
		return nil
	}
	res, err := h.service.Run(r.Context(), pipeline.At(pos.RA, pos.Dec))
	if err != nil {
		return err
	}
	lookup.Epochs = res.Epochs
	if res.Product != "" {
		lookup.ProductURL = "/products/" + filepath.Base(res.Product)
	}
	return nil
}
