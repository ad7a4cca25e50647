package pipeline

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target is one source to process, given either by position or by a
// catalog identifier that a resolver turns into a position.
type Target struct {
	ID     string   `yaml:"id,omitempty" json:"id,omitempty"`
	Survey string   `yaml:"survey,omitempty" json:"survey,omitempty"`
	RA     *float64 `yaml:"ra,omitempty" json:"ra,omitempty"`
	Dec    *float64 `yaml:"dec,omitempty" json:"dec,omitempty"`
}

// At builds a target from a position.
func At(ra, dec float64) Target {
	return Target{RA: &ra, Dec: &dec}
}

// HasPosition reports whether the target carries its own coordinates.
func (t Target) HasPosition() bool {
	return t.RA != nil && t.Dec != nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._+-]+`)

// Name labels the target in results and product file names.
func (t Target) Name() string {
	if t.ID != "" {
		survey := strings.ToLower(t.Survey)
		if survey == "" {
			survey = "tic"
		}
		return unsafeName.ReplaceAllString(survey+"_"+t.ID, "_")
	}
	if t.HasPosition() {
		return fmt.Sprintf("ra%.5f_dec%+.5f", *t.RA, *t.Dec)
	}
	return "unnamed"
}

// Validate checks the target names exactly one way of finding it.
func (t Target) Validate() error {
	if (t.RA == nil) != (t.Dec == nil) {
		return fmt.Errorf("target %s: ra and dec must be given together", t.Name())
	}
	if t.HasPosition() && t.ID != "" {
		return fmt.Errorf("target %s: give either an identifier or a position", t.Name())
	}
	if !t.HasPosition() && t.ID == "" {
		return fmt.Errorf("target needs an identifier or a position")
	}
	return nil
}

type targetFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads a YAML file with a top level "targets" list.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var tf targetFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
	}
	for i, t := range tf.Targets {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("targets file %s entry %d: %w", path, i+1, err)
		}
	}
	return tf.Targets, nil
}
