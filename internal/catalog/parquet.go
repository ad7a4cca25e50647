package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/parquet-go/parquet-go"
)

// parquetRow is the on-disk layout of the binary catalog.
type parquetRow struct {
	File  string        `parquet:"post_file"`
	CenX  float64       `parquet:"post_cenx"`
	CenY  float64       `parquet:"post_ceny"`
	Size1 float64       `parquet:"post_size1"`
	Size2 float64       `parquet:"post_size2"`
	Cards []parquetCard `parquet:"cards,list"`
}

type parquetCard struct {
	Name  string `parquet:"name"`
	Value string `parquet:"value"`
}

func (pr parquetRow) record(index int) (Record, error) {
	if pr.File == "" {
		return Record{}, fmt.Errorf("empty %s", ColumnFile)
	}
	if err := checkGeometry(pr.CenX, pr.CenY, pr.Size1, pr.Size2); err != nil {
		return Record{}, err
	}
	cards := make([]header.Card, 0, len(pr.Cards))
	for _, c := range pr.Cards {
		cards = append(cards, header.Card{Name: c.Name, Value: header.ParseValue(c.Value)})
	}
	return Record{
		Index:      index,
		File:       pr.File,
		Header:     header.New(cards...),
		CenterX:    pr.CenX,
		CenterY:    pr.CenY,
		HalfWidth:  pr.Size1 / 2,
		HalfHeight: pr.Size2 / 2,
	}, nil
}

func newParquetRow(r Record) parquetRow {
	pr := parquetRow{
		File:  r.File,
		CenX:  r.CenterX,
		CenY:  r.CenterY,
		Size1: r.HalfWidth * 2,
		Size2: r.HalfHeight * 2,
	}
	for _, c := range r.Header.Cards() {
		pr.Cards = append(pr.Cards, parquetCard{Name: c.Name, Value: header.FormatValue(c.Value)})
	}
	return pr
}

// WriteParquet writes records in the layout read back by Load for ".parquet" paths.
func WriteParquet(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[parquetRow](file)

	rows := make([]parquetRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, newParquetRow(r))
	}

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	slog.Debug("Wrote parquet catalog", "path", path, "records", len(rows))
	return file.Close()
}
