package models

import (
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
)

// Lookup statuses.
const (
	StatusFound  = "found"
	StatusFailed = "failed"
)

// Lookup is one position matched against the catalog through the API
type Lookup struct {
	ID         string              `json:"id"`
	RA         float64             `json:"ra"`
	Dec        float64             `json:"dec"`
	Status     string              `json:"status"`
	Postcard   string              `json:"postcard,omitempty"`
	Raw        pointing.Pixel      `json:"raw"`
	Corrected  pointing.Pixel      `json:"corrected"`
	Distance   float64             `json:"distance"`
	Candidates []locator.Candidate `json:"candidates,omitempty"`
	Error      string              `json:"error,omitempty"`
	ErrorKind  string              `json:"error_kind,omitempty"`
	Epochs     int                 `json:"epochs,omitempty"`
	ProductURL string              `json:"product_url,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// LookupRequest is the body of POST /api/lookups
type LookupRequest struct {
	RA     *float64 `json:"ra"`
	Dec    *float64 `json:"dec"`
	ID     string   `json:"id,omitempty"`
	Survey string   `json:"survey,omitempty"`
	// Cutout also extracts the window, measures the light curve and writes a product.
	Cutout bool `json:"cutout,omitempty"`
}
