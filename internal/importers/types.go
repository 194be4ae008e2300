package importers

import "time"

// RunStatus is the lifecycle of an import run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one import.
type Run struct {
	ID               string     `json:"id"`
	Root             string     `json:"root"`
	Status           RunStatus  `json:"status"`
	FilesScanned     int        `json:"files_scanned"`
	DiagramsImported int        `json:"diagrams_imported"`
	Errors           []string   `json:"errors"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Candidate is a diagram found in a file.
type Candidate struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"` // relative path of the file it came from
}

// Imported is a candidate that was saved.
type Imported struct {
	ID     string `json:"id,omitempty"` // empty on dry runs
	Title  string `json:"title"`
	Source string `json:"source"`
}

// Result summarizes an import.
type Result struct {
	RunID        string     `json:"run_id,omitempty"`
	FilesScanned int        `json:"files_scanned"`
	Found        int        `json:"found"`
	Imported     []Imported `json:"imported"`
	Duplicates   int        `json:"duplicates"`
	Errors       []string   `json:"errors,omitempty"`
}

// Options tunes an import.
type Options struct {
	// DryRun finds diagrams without saving them or recording a run.
	DryRun bool
	// AllowDuplicates imports diagrams whose source already exists.
	AllowDuplicates bool
}
