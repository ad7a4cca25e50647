// Package pointing loads tabulated pointing models and applies the affine
// rotation + shift correction they describe.
package pointing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrModelNotFound is returned when no usable pointing model exists for a camera/chip.
var ErrModelNotFound = errors.New("pointing model not found")

// Row is one epoch of a pointing model file, exactly as tabulated on disk.
type Row struct {
	Epoch       int
	RotationDeg float64
	ShiftX      float64
	ShiftY      float64
}

// Entry is a pointing correction ready for use. Theta is in radians.
type Entry struct {
	Theta  float64
	ShiftX float64
	ShiftY float64
}

// DegreesToRadians is the only place rotation units change.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Entry converts the tabulated row into a correction.
func (r Row) Entry() Entry {
	return Entry{
		Theta:  DegreesToRadians(r.RotationDeg),
		ShiftX: r.ShiftX,
		ShiftY: r.ShiftY,
	}
}

// ParseRows reads a pointing model table: one header line, then
// whitespace separated rows of epoch, rotation (degrees), x shift, y shift.
// Extra trailing columns are ignored.
func ParseRows(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)

	var (
		rows       []Row
		lineNum    int
		headerSeen bool
	)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !headerSeen {
			headerSeen = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", lineNum, len(fields))
		}

		epoch, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid epoch %q: %w", lineNum, fields[0], err)
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", lineNum, fields[i+1], err)
			}
		}

		rows = append(rows, Row{
			Epoch:       int(epoch),
			RotationDeg: vals[0],
			ShiftX:      vals[1],
			ShiftY:      vals[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pointing model: %w", err)
	}

	return rows, nil
}
