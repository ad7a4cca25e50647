// Package product writes and reads the FITS file produced for a target: the
// cutout cube with its postcard header and provenance, plus a light curve table.
package product

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/lehigh-university-libraries/ellie/internal/photometry"
)

// LightCurveExtension names the binary table HDU.
const LightCurveExtension = "LIGHTCURVE"

// Provenance cards written to every product.
type Provenance struct {
	Author  string
	Version string
	GitHub  string
}

// DefaultProvenance identifies products made by this tool.
var DefaultProvenance = Provenance{
	Author:  "Adina D. Feinstein",
	Version: "1.0",
	GitHub:  "https://github.com/afeinstein20/ELLIE",
}

// structural keywords are owned by the FITS encoder.
var structural = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "EXTEND": true, "XTENSION": true,
	"PCOUNT": true, "GCOUNT": true, "END": true, "BSCALE": true, "BZERO": true,
	"TFIELDS": true, "EXTNAME": true,
	// Provenance is rewritten on every product.
	"AUTHOR": true, "VERSION": true, "GITHUB": true, "CREATED": true,
	"COMMENT": true, "HISTORY": true,
}

func isStructural(name string) bool {
	n := strings.ToUpper(name)
	return structural[n] || strings.HasPrefix(n, "NAXIS") ||
		strings.HasPrefix(n, "TTYPE") || strings.HasPrefix(n, "TFORM") || strings.HasPrefix(n, "TUNIT")
}

// Product is the content of a product file.
type Product struct {
	Header     *header.Header
	Cube       *cutout.Cube
	LightCurve photometry.LightCurve
}

// Writer writes product files.
type Writer struct {
	Provenance Provenance
	Now        func() time.Time
}

// NewWriter creates a writer with the default provenance and the wall clock.
func NewWriter() *Writer {
	return &Writer{Provenance: DefaultProvenance, Now: time.Now}
}

// Cards builds the primary header: the postcard cards followed by the cutout
// origin and provenance.
func (w *Writer) Cards(hdr *header.Header, c *cutout.Cutout) []fitsio.Card {
	var cards []fitsio.Card
	for _, card := range hdr.Cards() {
		if isStructural(card.Name) {
			continue
		}
		if len(card.Name) > 8 {
			slog.Debug("Skipping header card with long name", "name", card.Name)
			continue
		}
		cards = append(cards, fitsio.Card{Name: strings.ToUpper(card.Name), Value: card.Value, Comment: card.Comment})
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	cards = append(cards,
		fitsio.Card{Name: "CUTROW0", Value: c.Row0, Comment: "first postcard row of the cutout"},
		fitsio.Card{Name: "CUTCOL0", Value: c.Col0, Comment: "first postcard column of the cutout"},
		fitsio.Card{Name: "COMMENT", Value: "ELLIE INFO"},
		fitsio.Card{Name: "AUTHOR", Value: w.Provenance.Author},
		fitsio.Card{Name: "VERSION", Value: w.Provenance.Version},
		fitsio.Card{Name: "GITHUB", Value: w.Provenance.GitHub},
		fitsio.Card{Name: "CREATED", Value: now().Format("2006-01-02"), Comment: "ELLIE file creation date (YYYY-MM-DD)"},
	)
	return cards
}

// Write stores the product at path, replacing any existing file.
func (w *Writer) Write(path string, hdr *header.Header, c *cutout.Cutout, lc photometry.LightCurve) error {
	if c == nil {
		return fmt.Errorf("no cutout to write")
	}
	if err := c.Cube.Validate(); err != nil {
		return fmt.Errorf("invalid cutout: %w", err)
	}
	if lc.Len() != c.Cube.Epochs || len(lc.Raw) != lc.Len() || len(lc.Corrected) != lc.Len() {
		return fmt.Errorf("light curve has %d epochs, cutout has %d", lc.Len(), c.Cube.Epochs)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	defer file.Close()

	f, err := fitsio.Create(file)
	if err != nil {
		return fmt.Errorf("failed to start FITS file: %w", err)
	}

	img := fitsio.NewImage(-32, []int{c.Cube.Cols, c.Cube.Rows, c.Cube.Epochs})
	defer img.Close()
	if err := img.Header().Append(w.Cards(hdr, c)...); err != nil {
		return fmt.Errorf("failed to build product header: %w", err)
	}
	data := c.Cube.Data
	if err := img.Write(&data); err != nil {
		return fmt.Errorf("failed to encode cutout: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("failed to write cutout: %w", err)
	}

	tbl, err := fitsio.NewTable(LightCurveExtension, []fitsio.Column{
		{Name: "EPOCH", Format: "K"},
		{Name: "RAW_FLUX", Format: "D"},
		{Name: "CORR_FLUX", Format: "D"},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("failed to create light curve table: %w", err)
	}
	defer tbl.Close()

	for i := 0; i < lc.Len(); i++ {
		epoch := int64(lc.Epochs[i])
		raw := lc.Raw[i]
		corr := lc.Corrected[i]
		if err := tbl.Write(&epoch, &raw, &corr); err != nil {
			return fmt.Errorf("failed to write light curve row %d: %w", i, err)
		}
	}
	if err := f.Write(tbl); err != nil {
		return fmt.Errorf("failed to write light curve: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finish FITS file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close product: %w", err)
	}

	slog.Info("Product written", "path", path, "epochs", lc.Len())
	return nil
}

// Read loads a product file.
func Read(path string) (*Product, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open product: %w", err)
	}
	defer file.Close()

	f, err := fitsio.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product %s: %w", path, err)
	}
	defer f.Close()

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("product %s: primary HDU is not an image", path)
	}
	axes := img.Header().Axes()
	if len(axes) != 3 {
		return nil, fmt.Errorf("product %s: expected a 3-D cutout, got %d axes", path, len(axes))
	}
	cube := cutout.NewCube(axes[2], axes[1], axes[0])
	if err := img.Read(&cube.Data); err != nil {
		return nil, fmt.Errorf("failed to read cutout: %w", err)
	}

	hdr := header.New()
	for _, key := range img.Header().Keys() {
		if key == "" || (isStructural(key) && !isProvenance(key)) {
			continue
		}
		c := img.Header().Get(key)
		if c == nil {
			continue
		}
		hdr.Set(header.Card{Name: c.Name, Value: c.Value, Comment: c.Comment})
	}

	tbl, ok := f.Get(LightCurveExtension).(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("product %s: missing %s table", path, LightCurveExtension)
	}
	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, fmt.Errorf("failed to read light curve: %w", err)
	}
	defer rows.Close()

	var lc photometry.LightCurve
	for rows.Next() {
		var (
			epoch     int64
			raw, corr float64
		)
		if err := rows.Scan(&epoch, &raw, &corr); err != nil {
			return nil, fmt.Errorf("failed to scan light curve: %w", err)
		}
		lc.Epochs = append(lc.Epochs, int(epoch))
		lc.Raw = append(lc.Raw, raw)
		lc.Corrected = append(lc.Corrected, corr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read light curve: %w", err)
	}

	return &Product{Header: hdr, Cube: cube, LightCurve: lc}, nil
}

func isProvenance(key string) bool {
	switch strings.ToUpper(key) {
	case "AUTHOR", "VERSION", "GITHUB", "CREATED":
		return true
	}
	return false
}
