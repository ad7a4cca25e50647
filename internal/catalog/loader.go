package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/parquet-go/parquet-go"
)

// Loader reads postcard catalogs from ascii-basic text or parquet files
type Loader struct {
	catalogPath    string
	maxHeaderCards int
}

// NewLoader creates a catalog loader. maxHeaderCards <= 0 selects DefaultMaxHeaderCards.
func NewLoader(catalogPath string, maxHeaderCards int) *Loader {
	if maxHeaderCards <= 0 {
		maxHeaderCards = DefaultMaxHeaderCards
	}
	return &Loader{
		catalogPath:    catalogPath,
		maxHeaderCards: maxHeaderCards,
	}
}

// Load reads a catalog with the default header card limit.
func Load(path string) ([]Record, error) {
	return NewLoader(path, 0).Load()
}

// Load reads every postcard record in catalog order
func (l *Loader) Load() ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.catalogPath))

	var (
		records []Record
		err     error
	)
	switch ext {
	case ".parquet":
		records, err = l.loadParquet()
	default:
		records, err = l.loadASCII()
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Catalog loaded", "path", l.catalogPath, "records", len(records))
	return records, nil
}

func (l *Loader) fail(row int, err error) error {
	return &LoadError{Path: l.catalogPath, Row: row, Err: err}
}

// loadASCII parses a whitespace delimited table with a single header line.
// Lines starting with '#' are comments; values may be double quoted.
func (l *Loader) loadASCII() ([]Record, error) {
	slog.Debug("Opening ascii catalog", "path", l.catalogPath)

	file, err := os.Open(l.catalogPath)
	if err != nil {
		return nil, l.fail(0, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	var (
		columns []string
		records []Record
		row     int
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields, err := splitFields(line)
		if err != nil {
			return nil, l.fail(row, err)
		}

		if columns == nil {
			columns = make([]string, len(fields))
			for i, f := range fields {
				columns[i] = unquote(f)
			}
			if err := l.checkColumns(columns); err != nil {
				return nil, l.fail(0, err)
			}
			continue
		}

		row++
		if len(fields) != len(columns) {
			return nil, l.fail(row, fmt.Errorf("expected %d columns, got %d", len(columns), len(fields)))
		}

		values := make(map[string]string, len(columns))
		cards := make([]header.Card, 0, len(columns)-len(requiredColumns))
		for i, name := range columns {
			if isRequired(name) {
				values[name] = unquote(fields[i])
				continue
			}
			cards = append(cards, header.Card{Name: name, Value: header.ParseValue(fields[i])})
		}

		rec, err := newRecord(len(records), values, cards)
		if err != nil {
			return nil, l.fail(row, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, l.fail(row, fmt.Errorf("error reading catalog: %w", err))
	}
	if columns == nil {
		return nil, l.fail(0, errors.New("catalog has no header line"))
	}

	return records, nil
}

func (l *Loader) checkColumns(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for _, c := range requiredColumns {
		if !seen[c] {
			return fmt.Errorf("missing required column %q", c)
		}
	}
	if n := len(columns) - len(requiredColumns); n > l.maxHeaderCards {
		return fmt.Errorf("%d header columns exceeds limit of %d", n, l.maxHeaderCards)
	}
	return nil
}

// loadParquet reads the binary catalog written by WriteParquet
func (l *Loader) loadParquet() ([]Record, error) {
	slog.Debug("Opening Parquet catalog", "path", l.catalogPath)

	file, err := os.Open(l.catalogPath)
	if err != nil {
		return nil, l.fail(0, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, l.fail(0, fmt.Errorf("failed to stat file: %w", err))
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, l.fail(0, fmt.Errorf("failed to open parquet: %w", err))
	}

	slog.Debug("Parquet catalog opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	var records []Record
	rows := make([]parquetRow, 128)
	for {
		n, err := reader.Read(rows)
		for _, pr := range rows[:n] {
			if len(pr.Cards) > l.maxHeaderCards {
				return nil, l.fail(len(records)+1, fmt.Errorf("%d header cards exceeds limit of %d", len(pr.Cards), l.maxHeaderCards))
			}
			rec, recErr := pr.record(len(records))
			if recErr != nil {
				return nil, l.fail(len(records)+1, recErr)
			}
			records = append(records, rec)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, l.fail(len(records)+1, fmt.Errorf("failed to read parquet rows: %w", err))
		}
	}

	return records, nil
}

func isRequired(name string) bool {
	for _, c := range requiredColumns {
		if c == name {
			return true
		}
	}
	return false
}

func newRecord(index int, values map[string]string, cards []header.Card) (Record, error) {
	nums := make(map[string]float64, 4)
	for _, name := range []string{ColumnCenX, ColumnCenY, ColumnSize1, ColumnSize2} {
		v, err := strconv.ParseFloat(values[name], 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s %q: %w", name, values[name], err)
		}
		nums[name] = v
	}
	file := strings.Trim(values[ColumnFile], `"'`)
	if file == "" {
		return Record{}, fmt.Errorf("empty %s", ColumnFile)
	}
	if err := checkGeometry(nums[ColumnCenX], nums[ColumnCenY], nums[ColumnSize1], nums[ColumnSize2]); err != nil {
		return Record{}, err
	}

	return Record{
		Index:      index,
		File:       file,
		Header:     header.New(cards...),
		CenterX:    nums[ColumnCenX],
		CenterY:    nums[ColumnCenY],
		HalfWidth:  nums[ColumnSize1] / 2,
		HalfHeight: nums[ColumnSize2] / 2,
	}, nil
}

// checkGeometry rejects centers and sizes no footprint can be built from.
func checkGeometry(cenX, cenY, size1, size2 float64) error {
	for _, v := range []float64{cenX, cenY, size1, size2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("postcard geometry must be finite, got center (%g, %g) size %gx%g", cenX, cenY, size1, size2)
		}
	}
	if size1 <= 0 || size2 <= 0 {
		return fmt.Errorf("postcard size must be positive, got %gx%g", size1, size2)
	}
	return nil
}

// splitFields splits on runs of whitespace, honoring double-quoted values.
// Quotes stay on the field so header values keep their string type.
func splitFields(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			current.WriteRune(r)
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				fields = append(fields, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quoted value")
	}
	if started {
		fields = append(fields, current.String())
	}
	return fields, nil
}

func unquote(field string) string {
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		return field[1 : len(field)-1]
	}
	return field
}
