package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleProducts serves product FITS files written by cutout lookups.
func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/products/")

	// Prevent directory traversal attacks
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		h.writeError(w, "Invalid file path", http.StatusBadRequest)
		return
	}
	if !strings.HasSuffix(name, ".fits") {
		h.writeError(w, "Product not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/fits")
	http.ServeFile(w, r, filepath.Join(h.productDir, name))
}
