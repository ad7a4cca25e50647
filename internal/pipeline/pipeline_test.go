package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/lehigh-university-libraries/ellie/internal/product"
	"github.com/lehigh-university-libraries/ellie/internal/resolver"
	"github.com/lehigh-university-libraries/ellie/internal/wcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// identityProjector puts RA on x and Dec on y so targets can be placed by pixel.
type identityProjector struct{}

func (identityProjector) Project(rec catalog.Record, pos locator.SkyPosition) (pointing.Pixel, error) {
	if rec.File == "broken.fits" {
		return pointing.Pixel{}, wcs.ErrProjection
	}
	return pointing.Pixel{X: pos.RA, Y: pos.Dec}, nil
}

type cubeSource struct {
	mu    sync.Mutex
	reads map[string]int
}

func (s *cubeSource) Read(file string) (*cutout.Cube, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reads == nil {
		s.reads = make(map[string]int)
	}
	s.reads[file]++

	c := cutout.NewCube(3, 20, 20)
	for i := range c.Data {
		c.Data[i] = 10
	}
	for e := 0; e < 3; e++ {
		c.Set(e, 10, 10, float32(10+100*(e+1)))
	}
	return c, nil
}

type staticResolver map[string]locator.SkyPosition

func (r staticResolver) Resolve(ctx context.Context, survey, id string) (locator.SkyPosition, error) {
	if _, err := resolver.NormalizeSurvey(survey); err != nil {
		return locator.SkyPosition{}, err
	}
	pos, ok := r[id]
	if !ok {
		return locator.SkyPosition{}, errors.New("resolver returned status 404")
	}
	return pos, nil
}

func records() []catalog.Record {
	hdr := header.New(header.Card{Name: "CTYPE1", Value: "RA---TAN"}, header.Card{Name: "CAMERA", Value: 3})
	return []catalog.Record{
		{Index: 0, File: "A.fits", Header: hdr, CenterX: 100, CenterY: 100, HalfWidth: 10, HalfHeight: 10},
		{Index: 1, File: "B.fits", Header: hdr, CenterX: 118, CenterY: 100, HalfWidth: 10, HalfHeight: 10},
	}
}

func newPipeline(t *testing.T, writer ProductWriter) (*Pipeline, *cubeSource) {
	t.Helper()
	src := &cubeSource{}
	m := locator.NewMatcher(records(), pointing.Entry{}, identityProjector{})
	p := New(m, Options{
		Resolver:  staticResolver{"219870537": {RA: 100, Dec: 100}},
		Postcards: src,
		Writer:    writer,
		OutputDir: t.TempDir(),
	})
	return p, src
}

func TestRun(t *testing.T) {
	p, src := newPipeline(t, product.NewWriter())

	res, err := p.Run(context.Background(), At(100, 100))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "A.fits", res.Postcard)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 6, res.Row0)
	assert.Equal(t, 6, res.Col0)
	assert.Equal(t, 3, res.Epochs)
	assert.Equal(t, 1, src.reads["A.fits"])

	require.NotEmpty(t, res.Product)
	prod, err := product.Read(res.Product)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{100, 200, 300}, prod.LightCurve.Raw, 1e-6)
	assert.Equal(t, "RA---TAN", prod.Header.String("CTYPE1"))
}

func TestRunResolvesIdentifiers(t *testing.T) {
	p, _ := newPipeline(t, nil)

	res, err := p.Run(context.Background(), Target{ID: "219870537", Survey: "tic"})
	require.NoError(t, err)
	assert.Equal(t, "tic_219870537", res.Target)
	assert.Equal(t, locator.SkyPosition{RA: 100, Dec: 100}, res.Position)
	assert.Empty(t, res.Product)

	_, err = p.Run(context.Background(), Target{ID: "1", Survey: "2mass"})
	assert.ErrorIs(t, err, resolver.ErrUnknownSurvey)

	res, err = p.Run(context.Background(), Target{ID: "404"})
	require.Error(t, err)
	assert.Equal(t, KindResolver, res.ErrorKind)
}

func TestRunWithoutResolver(t *testing.T) {
	m := locator.NewMatcher(records(), pointing.Entry{}, identityProjector{})
	p := New(m, Options{Postcards: &cubeSource{}})

	_, err := p.Run(context.Background(), Target{ID: "219870537"})
	assert.ErrorIs(t, err, resolver.ErrNotConfigured)
}

func TestRunFailureKinds(t *testing.T) {
	p, _ := newPipeline(t, nil)

	tests := []struct {
		name   string
		target Target
		kind   string
	}{
		{"outside every postcard", At(300, 300), KindNoPostcard},
		// Inside A's footprint but the window runs off its right edge.
		{"window off the edge", At(107, 92), KindOutOfBounds},
		{"invalid target", Target{}, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Run(context.Background(), tt.target)
			require.Error(t, err)
			assert.False(t, res.OK())
			assert.Equal(t, tt.kind, res.ErrorKind)
		})
	}
}

func TestRunKeepsMatchOnExtractionFailure(t *testing.T) {
	p, _ := newPipeline(t, nil)

	res, err := p.Run(context.Background(), At(107, 92))
	assert.ErrorIs(t, err, cutout.ErrOutOfBounds)
	assert.Equal(t, "A.fits", res.Postcard)
	assert.Equal(t, pointing.Pixel{X: 107, Y: 92}, res.Corrected)
}

func TestRunProjectionErrorFailsFast(t *testing.T) {
	recs := append(records(), catalog.Record{Index: 2, File: "broken.fits", Header: header.New(), HalfWidth: 1, HalfHeight: 1})
	m := locator.NewMatcher(recs, pointing.Entry{}, identityProjector{})
	p := New(m, Options{Postcards: &cubeSource{}})

	res, err := p.Run(context.Background(), At(100, 100))
	assert.ErrorIs(t, err, wcs.ErrProjection)
	assert.Equal(t, KindProjection, res.ErrorKind)
}

func TestRunCanceled(t *testing.T) {
	p, _ := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, At(100, 100))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, res.ErrorKind)
}

func TestRunBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newPipeline(t, product.NewWriter())
	targets := []Target{
		At(100, 100),
		At(300, 300),
		{ID: "219870537"},
		At(116, 100),
		At(107, 92),
	}

	batch, err := p.RunBatch(context.Background(), targets, 2)
	require.NoError(t, err)
	require.Len(t, batch.Results, len(targets))

	assert.Equal(t, "A.fits", batch.Results[0].Postcard)
	assert.Equal(t, KindNoPostcard, batch.Results[1].ErrorKind)
	assert.True(t, batch.Results[2].OK())
	assert.Equal(t, "B.fits", batch.Results[3].Postcard)
	assert.Equal(t, KindOutOfBounds, batch.Results[4].ErrorKind)

	assert.Equal(t, 5, batch.Summary.Total)
	assert.Equal(t, 3, batch.Summary.Succeeded)
	assert.Equal(t, 2, batch.Summary.Failed)
	assert.Equal(t, map[string]int{KindNoPostcard: 1, KindOutOfBounds: 1}, batch.Summary.ErrorKinds)

	for _, r := range batch.Results {
		if r.OK() {
			_, err := os.Stat(r.Product)
			assert.NoError(t, err)
		}
	}
}

func TestRunBatchKeepsProductsWithSharedNames(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newPipeline(t, product.NewWriter())
	targets := []Target{
		At(100.000001, 100),
		At(100.000004, 100),
		{ID: "219870537"},
		{ID: "219870537"},
	}
	require.Equal(t, targets[0].Name(), targets[1].Name())

	batch, err := p.RunBatch(context.Background(), targets, 4)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, r := range batch.Results {
		require.True(t, r.OK(), "target %d: %s", i, r.Error)
		assert.False(t, seen[r.Product], "product %s written twice", r.Product)
		seen[r.Product] = true

		_, err := product.Read(r.Product)
		assert.NoError(t, err)
	}
	assert.Len(t, seen, len(targets))
}

func TestProductPathSuffixes(t *testing.T) {
	p, _ := newPipeline(t, nil)

	first := p.productPath("tic_1")
	assert.Equal(t, filepath.Join(p.outputDir, "tic_1.fits"), first)
	assert.Equal(t, filepath.Join(p.outputDir, "tic_1_2.fits"), p.productPath("tic_1"))
	// A target literally named like a suffixed one does not collide.
	assert.Equal(t, filepath.Join(p.outputDir, "tic_1_2_2.fits"), p.productPath("tic_1_2"))
	assert.Equal(t, filepath.Join(p.outputDir, "tic_1_3.fits"), p.productPath("tic_1"))
}

func TestRunBatchCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := p.RunBatch(ctx, []Target{At(100, 100), At(100, 100)}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, batch.Summary.Failed)
	assert.Equal(t, 2, batch.Summary.ErrorKinds[KindCanceled])
}

func TestErrorKind(t *testing.T) {
	assert.Empty(t, ErrorKind(nil))
	assert.Equal(t, KindCatalogLoad, ErrorKind(&catalog.LoadError{Path: "x", Err: errors.New("bad")}))
	assert.Equal(t, KindPointingModel, ErrorKind(pointing.ErrModelNotFound))
	assert.Equal(t, KindOther, ErrorKind(errors.New("other")))
}

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`targets:
  - id: "219870537"
    survey: tic
  - ra: 324.566
    dec: -33.1727
`), 0644))

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "tic_219870537", targets[0].Name())
	assert.Equal(t, "ra324.56600_dec-33.17270", targets[1].Name())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("targets:\n  - ra: 1\n"), 0644))
	_, err = LoadTargets(bad)
	assert.Error(t, err)

	_, err = LoadTargets(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
