package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/postcard"
	"github.com/lehigh-university-libraries/ellie/internal/product"
	"github.com/lehigh-university-libraries/ellie/internal/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2 CTYPE1 CTYPE2 CRVAL1 CRVAL2 CRPIX1 CRPIX2 CDELT1 CDELT2 CAMERA CCD
postcard_1.fits 100 100 100 100 RA---TAN DEC--TAN 10.0 -30.0 100.5 100.5 -0.01 0.01 3 3
postcard_2.fits 190 100 100 100 RA---TAN DEC--TAN 10.1 -30.0 190.5 100.5 -0.01 0.01 3 3
`

type fixture struct {
	dir     string
	catalog string
	output  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		catalog: filepath.Join(dir, "postcard.cat"),
		output:  filepath.Join(dir, "out"),
	}
	require.NoError(t, os.WriteFile(f.catalog, []byte(testCatalog), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pointingModel_3-3.txt"), []byte("epoch rot dx dy\n0 0.0 0.0 0.0\n"), 0644))

	cube := cutout.NewCube(2, 100, 100)
	for i := range cube.Data {
		cube.Data[i] = 5
	}
	require.NoError(t, postcard.WriteFile(filepath.Join(dir, "postcard_1.fits"), cube))
	return f
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--catalog", f.catalog,
		"--pointing-dir", f.dir,
		"--postcard-dir", f.dir,
		"--output-dir", f.output,
	}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLocateCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "locate", "--ra", "10", "--dec", "-30")
	require.NoError(t, err)
	assert.Contains(t, out, "postcard: postcard_1.fits")
	assert.Contains(t, out, "candidates:")
}

func TestLocateCommandNoPostcard(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "locate", "--ra", "20", "--dec", "-30")
	assert.Error(t, err)
}

func TestLocateCommandFromPixel(t *testing.T) {
	f := newFixture(t)

	// The reference pixel of postcard_1 maps back to its CRVAL.
	out, err := f.run(t, "locate", "--pixel", "100.5,100.5", "--postcard", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "target: ra10.00000_dec-30.00000")
	assert.Contains(t, out, "postcard: postcard_1.fits")

	out, err = f.run(t, "locate", "--pixel", "190.5,100.5", "--postcard", "1", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"postcard": "postcard_2.fits"`)

	_, err = f.run(t, "locate", "--pixel", "100.5,100.5", "--postcard", "7")
	assert.Error(t, err)

	_, err = f.run(t, "locate", "--pixel", "100.5", "--postcard", "0")
	assert.Error(t, err)

	_, err = f.run(t, "locate", "--pixel", "100.5,100.5")
	assert.Error(t, err)
}

func TestCutoutCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "cutout", "--ra", "10", "--dec", "-30", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"postcard": "postcard_1.fits"`)

	p, err := product.Read(filepath.Join(f.output, "ra10.00000_dec-30.00000.fits"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Cube.Epochs)
	assert.Equal(t, 9, p.Cube.Rows)
	assert.Equal(t, "RA---TAN", p.Header.String("CTYPE1"))
}

func TestBatchCommand(t *testing.T) {
	f := newFixture(t)
	targets := filepath.Join(f.dir, "targets.yaml")
	require.NoError(t, os.WriteFile(targets, []byte(`targets:
  - ra: 10
    dec: -30
  - ra: 20
    dec: -30
`), 0644))

	out, err := f.run(t, "batch", "--targets", targets, "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Succeeded:       1")
	assert.Contains(t, out, "no_postcard_found: 1")

	matches, err := filepath.Glob(filepath.Join(f.output, "results-*.yaml"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	report, err := results.Load(matches[0])
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Total)
}

func TestCatalogCommands(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "catalog", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "postcard_2.fits")
	assert.Contains(t, out, "2 postcards in")

	parquetPath := filepath.Join(f.dir, "postcard.parquet")
	_, err = f.run(t, "catalog", "convert", "--out", parquetPath)
	require.NoError(t, err)

	records, err := catalog.Load(parquetPath)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestInvalidConfiguration(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "--window", "0", "catalog", "inspect")
	assert.Error(t, err)
}

func TestFlagsOverrideInvalidEnvironment(t *testing.T) {
	f := newFixture(t)
	t.Setenv("ELLIE_WINDOW", "0")

	_, err := f.run(t, "catalog", "inspect")
	assert.Error(t, err)

	out, err := f.run(t, "--window", "9", "catalog", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "2 postcards in")
}
