package catalog

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `# postcard catalog
POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2 CTYPE1 CTYPE2 CRVAL1 CRVAL2 CRPIX1 CRPIX2 CAMERA CCD
postcard_1.fits 100 100 100 100 RA---TAN DEC--TAN 10.0 -30.0 100.5 100.5 3 3
"postcard 2.fits" 190 100 100 100 "RA---TAN" "DEC--TAN" 10.1 -30.0 190.5 100.5 3 3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadASCII(t *testing.T) {
	records, err := Load(writeFile(t, "postcard.cat", sampleCatalog))
	require.NoError(t, err)
	require.Len(t, records, 2)

	a := records[0]
	assert.Equal(t, 0, a.Index)
	assert.Equal(t, "postcard_1.fits", a.File)
	assert.Equal(t, 100.0, a.CenterX)
	assert.Equal(t, 50.0, a.HalfWidth)
	assert.Equal(t, 50.0, a.HalfHeight)
	assert.Equal(t, orb.Bound{Min: orb.Point{50, 50}, Max: orb.Point{150, 150}}, a.Bound())

	cards := a.Header.Cards()
	require.Len(t, cards, 8)
	assert.Equal(t, "CTYPE1", cards[0].Name)
	assert.Equal(t, "CCD", cards[7].Name)

	crval, ok := a.Header.Float("CRVAL1")
	require.True(t, ok)
	assert.Equal(t, 10.0, crval)

	camera, ok := a.Camera()
	require.True(t, ok)
	assert.Equal(t, 3, camera)

	b := records[1]
	assert.Equal(t, 1, b.Index)
	assert.Equal(t, "postcard 2.fits", b.File)
	assert.Equal(t, "RA---TAN", b.Header.String("CTYPE1"))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxCard int
	}{
		{
			name:    "missing required column",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1\na.fits 1 2 3\n",
		},
		{
			name:    "short row",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2 CRVAL1\na.fits 1 2 3 4\n",
		},
		{
			name:    "bad number",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits x 2 3 4\n",
		},
		{
			name:    "non positive size",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits 1 2 0 4\n",
		},
		{
			name:    "NaN center",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits NaN 2 3 4\n",
		},
		{
			name:    "infinite center",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits 1 -Inf 3 4\n",
		},
		{
			name:    "NaN size",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits 1 2 NaN 4\n",
		},
		{
			name:    "infinite size",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\na.fits 1 2 3 +Inf\n",
		},
		{
			name:    "too many header cards",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2 A B\na.fits 1 2 3 4 5 6\n",
			maxCard: 1,
		},
		{
			name:    "unterminated quote",
			content: "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2\n\"a.fits 1 2 3 4\n",
		},
		{
			name:    "empty file",
			content: "# nothing here\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeFile(t, "postcard.cat", tt.content), tt.maxCard).Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCatalogLoad)

			var loadErr *LoadError
			assert.True(t, errors.As(err, &loadErr))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cat"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParquetRoundTrip(t *testing.T) {
	records, err := Load(writeFile(t, "postcard.cat", sampleCatalog))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "postcard.parquet")
	require.NoError(t, WriteParquet(path, records))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(records))

	for i := range records {
		assert.Equal(t, records[i].File, loaded[i].File)
		assert.Equal(t, records[i].Bound(), loaded[i].Bound())
		assert.Equal(t, records[i].Header.Cards(), loaded[i].Header.Cards())
	}
}

func TestParquetRejectsNonFiniteGeometry(t *testing.T) {
	records, err := Load(writeFile(t, "postcard.cat", sampleCatalog))
	require.NoError(t, err)
	records[1].CenterY = math.NaN()

	path := filepath.Join(t.TempDir(), "postcard.parquet")
	require.NoError(t, WriteParquet(path, records))

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrCatalogLoad)
}

func TestSplitFields(t *testing.T) {
	fields, err := splitFields(`a  "b c"	d ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", `"b c"`, "d", `""`}, fields)
}

func TestQuotedHeaderValuesStayStrings(t *testing.T) {
	content := "POST_FILE POST_CENX POST_CENY POST_SIZE1 POST_SIZE2 OBJECT SECTOR\n" +
		"\"a.fits\" \"10\" 10 4 4 \"0123\" 0123\n"
	records, err := Load(writeFile(t, "postcard.cat", content))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "a.fits", records[0].File)
	assert.Equal(t, 10.0, records[0].CenterX)

	object, ok := records[0].Header.Get("OBJECT")
	require.True(t, ok)
	assert.Equal(t, "0123", object.Value)

	sector, ok := records[0].Header.Get("SECTOR")
	require.True(t, ok)
	assert.Equal(t, 123, sector.Value)
}
