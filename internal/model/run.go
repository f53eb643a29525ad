package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStage names the pipeline a run executed.
type RunStage string

const (
	StageAttribute RunStage = "attribute"
	StageSummarize RunStage = "summarize"
)

// Run describes one pipeline execution. It is written next to the outputs as
// the run manifest and optionally persisted by the result store.
type Run struct {
	ID        string            `json:"id" yaml:"run_id"`
	Stage     RunStage          `json:"stage" yaml:"stage"`
	Label     string            `json:"label" yaml:"label"` // epi week or attribution date
	Inputs    map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs   []string          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Counts    map[string]int64  `json:"counts,omitempty" yaml:"counts,omitempty"`
	Threshold int64             `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// Stamp assigns a new id and the creation time when they are unset.
func (r *Run) Stamp() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}
