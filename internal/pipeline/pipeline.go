// Package pipeline runs a target through position resolution, postcard
// matching, cutout extraction, photometry and product writing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/config"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/header"
	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/photometry"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/lehigh-university-libraries/ellie/internal/postcard"
	"github.com/lehigh-university-libraries/ellie/internal/product"
	"github.com/lehigh-university-libraries/ellie/internal/resolver"
)

// CubeSource reads the pixel cube of a postcard named in the catalog.
type CubeSource interface {
	Read(file string) (*cutout.Cube, error)
}

// ProductWriter persists a finished target.
type ProductWriter interface {
	Write(path string, hdr *header.Header, c *cutout.Cutout, lc photometry.LightCurve) error
}

// Options wires the optional stages. Zero values select defaults; a nil
// Writer skips product files and a nil Resolver only accepts positions.
type Options struct {
	Resolver   resolver.Resolver
	Postcards  CubeSource
	Photometer photometry.Photometer
	Writer     ProductWriter
	Window     cutout.Window
	OutputDir  string
}

// Pipeline processes targets against one loaded catalog and pointing model.
type Pipeline struct {
	matcher    *locator.Matcher
	resolver   resolver.Resolver
	postcards  CubeSource
	photometer photometry.Photometer
	writer     ProductWriter
	window     cutout.Window
	outputDir  string

	mu       sync.Mutex
	products map[string]bool
}

// New creates a pipeline around a matcher.
func New(matcher *locator.Matcher, opts Options) *Pipeline {
	if opts.Postcards == nil {
		opts.Postcards = postcard.NewReader("")
	}
	if opts.Photometer == nil {
		opts.Photometer = photometry.NewAperture(photometry.DefaultRadius)
	}
	if opts.Window.Width <= 0 || opts.Window.Height <= 0 {
		opts.Window = cutout.DefaultWindow
	}
	return &Pipeline{
		matcher:    matcher,
		resolver:   opts.Resolver,
		postcards:  opts.Postcards,
		photometer: opts.Photometer,
		writer:     opts.Writer,
		window:     opts.Window,
		outputDir:  opts.OutputDir,
		products:   make(map[string]bool),
	}
}

// FromConfig loads the catalog and pointing model named by cfg and wires
// the resolver, postcard reader and product writer.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	slog.Info("Loading catalog", "path", cfg.CatalogPath)
	records, err := catalog.NewLoader(cfg.CatalogPath, cfg.MaxHeaderCards).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	store := pointing.NewStore(cfg.PointingDir, cfg.PointingPattern)
	model, err := store.Load(cfg.Camera, cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("failed to load pointing model: %w", err)
	}
	slog.Info("Catalog loaded", "records", len(records), "camera", cfg.Camera, "chip", cfg.Chip)

	var res resolver.Resolver
	if cfg.ResolverURL != "" {
		res = resolver.NewClient(cfg.ResolverURL)
	}

	return New(locator.NewMatcher(records, model, nil), Options{
		Resolver:  res,
		Postcards: postcard.NewReader(cfg.PostcardDir),
		Writer:    product.NewWriter(),
		Window:    cfg.CutoutWindow(),
		OutputDir: cfg.OutputDir,
	}), nil
}

// Matcher exposes the catalog matcher.
func (p *Pipeline) Matcher() *locator.Matcher { return p.matcher }

// Position returns the target's coordinates, resolving identifiers.
func (p *Pipeline) Position(ctx context.Context, t Target) (locator.SkyPosition, error) {
	if err := t.Validate(); err != nil {
		return locator.SkyPosition{}, err
	}
	if t.HasPosition() {
		return locator.SkyPosition{RA: *t.RA, Dec: *t.Dec}, nil
	}
	if p.resolver == nil {
		return locator.SkyPosition{}, fmt.Errorf("%w: cannot resolve %s", resolver.ErrNotConfigured, t.Name())
	}
	survey := t.Survey
	if survey == "" {
		survey = resolver.SurveyTIC
	}
	pos, err := p.resolver.Resolve(ctx, survey, t.ID)
	if err != nil {
		return locator.SkyPosition{}, fmt.Errorf("%w %s: %w", errResolve, t.Name(), err)
	}
	return pos, nil
}

// Locate finds the postcard holding pos.
func (p *Pipeline) Locate(pos locator.SkyPosition) (locator.MatchResult, error) {
	return p.matcher.Match(pos)
}

// Located is a match together with the window cut from its postcard.
type Located struct {
	Match  locator.MatchResult
	Cutout *cutout.Cutout
}

// Cutout locates pos and extracts the configured window from the postcard.
func (p *Pipeline) Cutout(pos locator.SkyPosition) (*Located, error) {
	match, err := p.Locate(pos)
	if err != nil {
		return nil, err
	}
	c, err := p.extract(match)
	if err != nil {
		return nil, err
	}
	return &Located{Match: match, Cutout: c}, nil
}

func (p *Pipeline) extract(match locator.MatchResult) (*cutout.Cutout, error) {
	cube, err := p.postcards.Read(match.Record.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read postcard %s: %w", match.Record.File, err)
	}
	return cutout.Extract(cube, match.Record, match.Corrected, p.window)
}

// Result is the outcome of one target. Error is empty on success.
type Result struct {
	Target     string              `json:"target" yaml:"target"`
	Position   locator.SkyPosition `json:"position" yaml:"position"`
	Postcard   string              `json:"postcard,omitempty" yaml:"postcard,omitempty"`
	Raw        pointing.Pixel      `json:"raw" yaml:"raw"`
	Corrected  pointing.Pixel      `json:"corrected" yaml:"corrected"`
	Distance   float64             `json:"distance" yaml:"distance"`
	Candidates int                 `json:"candidates" yaml:"candidates"`
	Row0       int                 `json:"row0" yaml:"row0"`
	Col0       int                 `json:"col0" yaml:"col0"`
	Epochs     int                 `json:"epochs" yaml:"epochs"`
	Product    string              `json:"product,omitempty" yaml:"product,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind  string              `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// OK reports whether the target succeeded.
func (r Result) OK() bool { return r.Error == "" }

// Run processes one target end to end. The returned Result describes as much
// as was learned before any failure.
func (p *Pipeline) Run(ctx context.Context, t Target) (Result, error) {
	result := Result{Target: t.Name()}
	fail := func(err error) (Result, error) {
		result.Error = err.Error()
		result.ErrorKind = ErrorKind(err)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	pos, err := p.Position(ctx, t)
	if err != nil {
		return fail(err)
	}
	result.Position = pos

	match, err := p.Locate(pos)
	if err != nil {
		return fail(err)
	}
	result.fillMatch(match)

	c, err := p.extract(match)
	if err != nil {
		return fail(err)
	}
	result.Row0 = c.Row0
	result.Col0 = c.Col0
	result.Epochs = c.Cube.Epochs

	lc, err := p.photometer.Measure(c)
	if err != nil {
		return fail(fmt.Errorf("failed to measure light curve: %w", err))
	}

	if p.writer != nil {
		if p.outputDir != "" {
			if err := os.MkdirAll(p.outputDir, 0755); err != nil {
				return fail(fmt.Errorf("failed to create output directory: %w", err))
			}
		}
		path := p.productPath(t.Name())
		if err := p.writer.Write(path, match.Record.Header, c, lc); err != nil {
			return fail(fmt.Errorf("failed to write product: %w", err))
		}
		result.Product = path
	}

	return result, nil
}

// productPath claims a product file for name. Targets that share a name,
// such as positions equal to five decimals or a repeated identifier, get
// "_2", "_3" and so on so no product overwrites another from this pipeline.
func (p *Pipeline) productPath(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidate := name
	for n := 2; p.products[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	p.products[candidate] = true
	return filepath.Join(p.outputDir, candidate+".fits")
}

func (r *Result) fillMatch(m locator.MatchResult) {
	r.Postcard = m.Record.File
	r.Raw = m.Raw
	r.Corrected = m.Corrected
	r.Distance = m.Distance
	r.Candidates = len(m.Candidates)
}

// Summary aggregates a batch.
type Summary struct {
	Total      int            `json:"total" yaml:"total"`
	Succeeded  int            `json:"succeeded" yaml:"succeeded"`
	Failed     int            `json:"failed" yaml:"failed"`
	ErrorKinds map[string]int `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
	Elapsed    time.Duration  `json:"elapsed" yaml:"elapsed"`
}

// Summarize counts successes and failures by kind.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), ErrorKinds: make(map[string]int)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		s.ErrorKinds[r.ErrorKind]++
	}
	return s
}
