package client

import (
	"encoding/json"
	"time"
)

// Document sets travel in the canonical JSON form, keyed by document id.
// The SDK passes them through as raw JSON.
type DocumentSet = json.RawMessage

// DecodeReport counts the records a server decoded and skipped.
type DecodeReport struct {
	Decoded int               `json:"decoded"`
	Skipped int               `json:"skipped"`
	Reasons map[string]string `json:"reasons,omitempty"`
}

// PostprocessStats are the per-stage counters of a post-processing pass.
type PostprocessStats struct {
	Filter struct {
		Kept         int `json:"kept"`
		Dropped      int `json:"dropped"`
		UnknownLabel int `json:"unknown_label"`
	} `json:"filter"`
	Merge struct {
		Input  int `json:"input"`
		Output int `json:"output"`
		Merged int `json:"merged"`
	} `json:"merge"`
	Normalize struct {
		Documents  int `json:"documents"`
		Entities   int `json:"entities"`
		Duplicates int `json:"duplicates"`
		OutOfRange int `json:"out_of_range"`
		Misaligned int `json:"misaligned"`
	} `json:"normalize"`
}

// RuleStats counts one extension rule's candidates and outcomes.
type RuleStats struct {
	Total    int `json:"total"`
	Extended int `json:"extended"`
	Reverted int `json:"reverted,omitempty"`
}

// Step is one policy step.
type Step struct {
	Op     string   `json:"op"`
	Source string   `json:"source,omitempty"`
	Labels []string `json:"labels"`
}

// Policy is a named reconciliation table.
type Policy struct {
	Name   string `json:"name"`
	Base   string `json:"base"`
	Steps  []Step `json:"steps"`
	Output string `json:"output,omitempty"`
}

// StepReport records entity counts around one step for one label.
type StepReport struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Source string `json:"source,omitempty"`
	Label  string `json:"label"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// PolicyReport summarizes one policy application.
type PolicyReport struct {
	Policy    string        `json:"policy"`
	Base      string        `json:"base"`
	Documents int           `json:"documents"`
	Entities  int           `json:"entities"`
	Steps     []StepReport  `json:"steps"`
	Duration  time.Duration `json:"duration"`
}

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is a recorded pipeline run.
type Run struct {
	ID         string         `json:"id"`
	Policy     string         `json:"policy"`
	Output     string         `json:"output"`
	Status     string         `json:"status"`
	Documents  int            `json:"documents"`
	Entities   int            `json:"entities"`
	Stats      map[string]int `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Entity is one exported entity from the search index.
type Entity struct {
	RunID     string    `json:"run_id"`
	Policy    string    `json:"policy"`
	Output    string    `json:"output"`
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title,omitempty"`
	Location  string    `json:"location"`
	Start     int       `json:"start_idx"`
	End       int       `json:"end_idx"`
	Text      string    `json:"text_span"`
	Label     string    `json:"label"`
	Score     float64   `json:"score,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

//Personal.AI order the ending
