package pointing

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleModel = `epoch rotation shift_x shift_y
0 0.5 1.25 -2.5
1 0.6 1.30 -2.4
`

func TestDegreesToRadians(t *testing.T) {
	assert.InDelta(t, math.Pi, DegreesToRadians(180), 1e-15)
	assert.InDelta(t, math.Pi/2, DegreesToRadians(90), 1e-15)
	assert.Equal(t, 0.0, DegreesToRadians(0))
}

func TestRowEntryConvertsOnce(t *testing.T) {
	e := Row{Epoch: 0, RotationDeg: 0.5, ShiftX: 1, ShiftY: 2}.Entry()
	assert.InDelta(t, 0.5*math.Pi/180, e.Theta, 1e-15)
	assert.Equal(t, 1.0, e.ShiftX)
	assert.Equal(t, 2.0, e.ShiftY)
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(strings.NewReader(sampleModel))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Epoch: 0, RotationDeg: 0.5, ShiftX: 1.25, ShiftY: -2.5}, rows[0])
	assert.Equal(t, 1, rows[1].Epoch)

	_, err = ParseRows(strings.NewReader("header\n0 1 2\n"))
	assert.Error(t, err)

	_, err = ParseRows(strings.NewReader("header\n0 a 2 3\n"))
	assert.Error(t, err)
}

func TestCorrectIdentity(t *testing.T) {
	for _, xy := range []Pixel{{0, 0}, {1, 1}, {1024.5, -3.25}, {-7, 1e6}} {
		assert.Equal(t, xy, Correct(xy, Entry{}))
	}
}

func TestCorrect(t *testing.T) {
	got := Correct(Pixel{X: 1, Y: 0}, Entry{Theta: math.Pi / 2, ShiftX: 0.5, ShiftY: 1})
	assert.InDelta(t, -0.5, got.X, 1e-12)
	assert.InDelta(t, 0.0, got.Y, 1e-12)

	got = Correct(Pixel{X: 10, Y: 20}, Entry{ShiftX: 1, ShiftY: -2})
	assert.Equal(t, Pixel{X: 9, Y: 22}, got)
}

func TestCorrectPropagatesNaN(t *testing.T) {
	got := Correct(Pixel{X: math.NaN(), Y: 1}, Entry{Theta: 0.1})
	assert.True(t, math.IsNaN(got.X))
	assert.True(t, math.IsNaN(got.Y))
}

func TestUncorrectInvertsCorrect(t *testing.T) {
	e := Row{RotationDeg: 0.37, ShiftX: 3.5, ShiftY: -1.75}.Entry()
	xy := Pixel{X: 812.25, Y: 1533.5}
	back := Uncorrect(Correct(xy, e), e)
	assert.InDelta(t, xy.X, back.X, 1e-9)
	assert.InDelta(t, xy.Y, back.Y, 1e-9)
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pointingModel_3-3.txt"), []byte(sampleModel), 0644))

	store := NewStore(dir, "")
	assert.Equal(t, filepath.Join(dir, "pointingModel_3-3.txt"), store.Path(3, 3))

	e, err := store.Load(3, 3)
	require.NoError(t, err)
	assert.InDelta(t, DegreesToRadians(0.5), e.Theta, 1e-15)
	assert.Equal(t, 1.25, e.ShiftX)
	assert.Equal(t, -2.5, e.ShiftY)

	epochs, err := store.Epochs(3, 3)
	require.NoError(t, err)
	assert.Len(t, epochs, 2)

	// Callers get their own rows.
	epochs[0].ShiftX = 99
	fresh, err := store.Load(3, 3)
	require.NoError(t, err)
	assert.Equal(t, e, fresh)

	// Cached: removing the file does not change the answer.
	require.NoError(t, os.Remove(store.Path(3, 3)))
	again, err := store.Load(3, 3)
	require.NoError(t, err)
	assert.Equal(t, e, again)
}

func TestStoreNotFound(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "")

	_, err := store.Load(1, 2)
	assert.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, os.WriteFile(store.Path(1, 4), []byte("epoch rot dx dy\n"), 0644))
	_, err = store.Load(1, 4)
	assert.ErrorIs(t, err, ErrModelNotFound)
}
