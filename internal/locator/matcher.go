// Package locator finds the postcard that contains a sky position once the
// pointing correction has been applied.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrNoPostcardFound means no footprint contains the corrected position.
var ErrNoPostcardFound = errors.New("no postcard found")

// Candidate is a postcard whose footprint contains the corrected position.
type Candidate struct {
	Index     int            `json:"index" yaml:"index"`
	File      string         `json:"file" yaml:"file"`
	Raw       pointing.Pixel `json:"raw" yaml:"raw"`
	Corrected pointing.Pixel `json:"corrected" yaml:"corrected"`
	Distance  float64        `json:"distance" yaml:"distance"`
}

// MatchResult is the selected postcard and the corrected coordinate that selected it.
type MatchResult struct {
	Record     catalog.Record
	Raw        pointing.Pixel
	Corrected  pointing.Pixel
	Distance   float64
	Candidates []Candidate
}

// Matcher searches a catalog for the postcard containing a target.
type Matcher struct {
	records   []catalog.Record
	model     pointing.Entry
	projector Projector
}

// NewMatcher creates a matcher. A nil projector selects a WCSProjector.
func NewMatcher(records []catalog.Record, model pointing.Entry, projector Projector) *Matcher {
	if projector == nil {
		projector = NewWCSProjector()
	}
	return &Matcher{
		records:   records,
		model:     model,
		projector: projector,
	}
}

func (m *Matcher) Records() []catalog.Record { return m.records }

// Unproject removes the pointing correction from a corrected pixel on the
// record at index and maps the raw pixel back onto the sky.
func (m *Matcher) Unproject(index int, corrected pointing.Pixel) (SkyPosition, error) {
	if index < 0 || index >= len(m.records) {
		return SkyPosition{}, fmt.Errorf("postcard index %d out of range: catalog has %d records", index, len(m.records))
	}
	u, ok := m.projector.(Unprojector)
	if !ok {
		return SkyPosition{}, fmt.Errorf("projector %T cannot map pixels back to the sky", m.projector)
	}
	return u.Unproject(m.records[index], pointing.Uncorrect(corrected, m.model))
}

// Match projects and corrects pos against every record, keeps those whose
// footprint contains the result, and returns the one whose center is closest.
// Equal distances keep the earlier record.
func (m *Matcher) Match(pos SkyPosition) (MatchResult, error) {
	var (
		candidates []Candidate
		best       = -1
	)

	for i, rec := range m.records {
		raw, err := m.projector.Project(rec, pos)
		if err != nil {
			return MatchResult{}, err
		}
		corrected := pointing.Correct(raw, m.model)

		if !Contains(rec, corrected) {
			continue
		}

		c := Candidate{
			Index:     i,
			File:      rec.File,
			Raw:       raw,
			Corrected: corrected,
			Distance:  planar.Distance(point(corrected), rec.Center()),
		}
		candidates = append(candidates, c)
		if best < 0 || c.Distance < candidates[best].Distance {
			best = len(candidates) - 1
		}

		slog.Debug("Postcard contains target", "file", rec.File, "x", corrected.X, "y", corrected.Y, "distance", c.Distance)
	}

	if best < 0 {
		return MatchResult{}, fmt.Errorf("%w for %s among %d postcards", ErrNoPostcardFound, pos, len(m.records))
	}

	winner := candidates[best]
	return MatchResult{
		Record:     m.records[winner.Index],
		Raw:        winner.Raw,
		Corrected:  winner.Corrected,
		Distance:   winner.Distance,
		Candidates: candidates,
	}, nil
}

// Contains reports whether xy lies in the record's footprint, edges included.
func Contains(rec catalog.Record, xy pointing.Pixel) bool {
	if math.IsNaN(xy.X) || math.IsNaN(xy.Y) {
		return false
	}
	return rec.Bound().Contains(point(xy))
}

func point(xy pointing.Pixel) orb.Point {
	return orb.Point{xy.X, xy.Y}
}
