// Package postcard reads the multi-epoch pixel cube stored in a postcard FITS file.
package postcard

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
)

// Reader opens postcard files relative to a directory.
type Reader struct {
	dir string
}

// NewReader creates a reader rooted at dir. Absolute file names are used as is.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Path resolves a catalog file name against the reader's directory.
func (r *Reader) Path(file string) string {
	if filepath.IsAbs(file) || r.dir == "" {
		return file
	}
	return filepath.Join(r.dir, file)
}

// Read loads the primary image of a postcard into a cube.
func (r *Reader) Read(file string) (*cutout.Cube, error) {
	return ReadFile(r.Path(file))
}

// ReadFile loads the primary 3-D image of a FITS file. NAXIS1 is columns,
// NAXIS2 rows and NAXIS3 epochs; a 2-D image is read as a single epoch.
func ReadFile(path string) (*cutout.Cube, error) {
	slog.Debug("Reading postcard", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open postcard: %w", err)
	}
	defer file.Close()

	f, err := fitsio.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postcard %s: %w", path, err)
	}
	defer f.Close()

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("postcard %s: primary HDU is not an image", path)
	}

	hdr := img.Header()
	axes := hdr.Axes()
	var epochs, rows, cols int
	switch len(axes) {
	case 2:
		cols, rows, epochs = axes[0], axes[1], 1
	case 3:
		cols, rows, epochs = axes[0], axes[1], axes[2]
	default:
		return nil, fmt.Errorf("postcard %s: expected a 3-D image, got %d axes", path, len(axes))
	}

	n := epochs * rows * cols
	pixels, err := readPixels(img, hdr.Bitpix(), n)
	if err != nil {
		return nil, fmt.Errorf("failed to read postcard %s: %w", path, err)
	}

	scale, zero := 1.0, 0.0
	if c := hdr.Get("BSCALE"); c != nil {
		if v, ok := number(c.Value); ok {
			scale = v
		}
	}
	if c := hdr.Get("BZERO"); c != nil {
		if v, ok := number(c.Value); ok {
			zero = v
		}
	}
	if scale != 1 || zero != 0 {
		for i, v := range pixels {
			pixels[i] = float32(float64(v)*scale + zero)
		}
	}

	cube := &cutout.Cube{Epochs: epochs, Rows: rows, Cols: cols, Data: pixels}
	if err := cube.Validate(); err != nil {
		return nil, fmt.Errorf("postcard %s: %w", path, err)
	}

	slog.Debug("Postcard read", "path", path, "epochs", epochs, "rows", rows, "cols", cols)
	return cube, nil
}

func readPixels(img fitsio.Image, bitpix, n int) ([]float32, error) {
	out := make([]float32, n)
	switch bitpix {
	case 8:
		buf := make([]uint8, n)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case 16:
		buf := make([]int16, n)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case 32:
		buf := make([]int32, n)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case 64:
		buf := make([]int64, n)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case -32:
		if err := img.Read(&out); err != nil {
			return nil, err
		}
	case -64:
		buf := make([]float64, n)
		if err := img.Read(&buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	return out, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// WriteFile stores a cube as a -32 BITPIX primary image.
func WriteFile(path string, cube *cutout.Cube) error {
	if err := cube.Validate(); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create postcard: %w", err)
	}
	defer file.Close()

	f, err := fitsio.Create(file)
	if err != nil {
		return fmt.Errorf("failed to start FITS file: %w", err)
	}

	img := fitsio.NewImage(-32, []int{cube.Cols, cube.Rows, cube.Epochs})
	defer img.Close()

	data := cube.Data
	if err := img.Write(&data); err != nil {
		return fmt.Errorf("failed to encode pixels: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finish FITS file: %w", err)
	}
	return file.Close()
}
