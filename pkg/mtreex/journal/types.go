// Package journal keeps a history of mtreex runs as one JSON file per run.
package journal

import "time"

// Operation names the command that produced an entry.
type Operation string

const (
	// OpConvert records a manifest rendered into another format.
	OpConvert Operation = "convert"
	// OpGenerate records a manifest generated from a directory tree.
	OpGenerate Operation = "generate"
	// OpVerify records a tree checked against a manifest.
	OpVerify Operation = "verify"
)

// maxFindings bounds how many verification findings an entry keeps.
const maxFindings = 100

// Entry represents a single journal entry.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`

	// Source is the manifest file or directory read ("-" for stdin).
	Source string `json:"source"`

	// Target is the tree verified against, or the output file written.
	Target string `json:"target,omitempty"`

	// Format is the output format, if any.
	Format string `json:"format,omitempty"`

	Summary Summary `json:"summary"`

	// Findings lists verification problems, truncated to the first 100.
	Findings []string `json:"findings,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Summary contains counts over the manifest involved in the run.
type Summary struct {
	Entries  int   `json:"entries"`
	Dirs     int   `json:"dirs"`
	Files    int   `json:"files"`
	Bytes    int64 `json:"bytes"`
	Problems int   `json:"problems"`
}
