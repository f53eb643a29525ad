// Package pipeline runs the attribution and summary stages end to end: load
// inputs, compute, then write outputs and the run manifest. Nothing is
// written until every computation of a run has succeeded.
package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hrmap/internal/model"
)

// Stage names reported with pipeline errors.
const (
	StageLoadRegions        = "load_regions"
	StageBuildIndex         = "build_index"
	StageReadPoints         = "read_points"
	StageReproject          = "reproject"
	StageAttribute          = "attribute"
	StageReadCorrespondence = "read_correspondence"
	StageReadObservations   = "read_observations"
	StageDisaggregate       = "disaggregate"
	StageWrite              = "write"
	StagePersist            = "persist"
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "" when there is none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// EpiWeek derives the reporting period label from an observation file name:
// the last underscore-separated token of the stem ("fluwatch_fsa_202015.csv"
// gives "202015"). A stem without underscores is returned whole.
func EpiWeek(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(stem, "_"); i >= 0 && i < len(stem)-1 {
		return stem[i+1:]
	}
	return stem
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// WriteManifest writes the run as YAML.
func WriteManifest(path string, run *model.Run) error {
	b, err := yaml.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "pipeline: encode manifest")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create directory for %s", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*model.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}
	var run model.Run
	if err := yaml.Unmarshal(b, &run); err != nil {
		return nil, eris.Wrapf(err, "pipeline: decode %s", path)
	}
	return &run, nil
}
