// pkg/schema/events.go
package schema

import (
	"time"

	"github.com/tendant/simple-thumbnail-library/internal/img"
	"github.com/tendant/simple-thumbnail-library/internal/process"
)

type RunStage string

const (
	StageCompleted RunStage = "completed"
	StageArchived  RunStage = "archived"
	StageFailed    RunStage = "failed"
)

type FailureType string

const (
	FailureTypeTraversal FailureType = "traversal"
	FailureTypeArchive   FailureType = "archive"
)

type KindCounts struct {
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Unsupported int `json:"unsupported,omitempty"`
}

type LibraryCompleted struct {
	RunID            string                `json:"run_id"`
	Source           string                `json:"source"`
	Destination      string                `json:"destination"`
	Archive          string                `json:"archive,omitempty"`
	Stage            RunStage              `json:"stage"`
	Directories      int                   `json:"directories"`
	TotalFiles       int                   `json:"total_files"`
	TotalCreated     int                   `json:"total_created"`
	TotalFailed      int                   `json:"total_failed"`
	TraversalErrors  int                   `json:"traversal_errors"`
	ByKind           map[string]KindCounts `json:"by_kind,omitempty"`
	FailedPaths      []string              `json:"failed_paths,omitempty"`
	ProcessingStart  int64                 `json:"processing_start"`
	ProcessingEnd    int64                 `json:"processing_end"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	Error            string                `json:"error,omitempty"`
	FailureType      FailureType           `json:"failure_type,omitempty"`
	HappenedAt       int64                 `json:"happened_at"`
}

// NewLibraryCompleted summarises a run. archive is empty for plain runs and
// runErr is the error that ended the run, if any.
func NewLibraryCompleted(runID, source, destination, archive string, summary *process.Summary, start, end time.Time, runErr error, failure FailureType) LibraryCompleted {
	evt := LibraryCompleted{
		RunID:            runID,
		Source:           source,
		Destination:      destination,
		Archive:          archive,
		Stage:            StageCompleted,
		ProcessingStart:  start.Unix(),
		ProcessingEnd:    end.Unix(),
		ProcessingTimeMs: end.Sub(start).Milliseconds(),
		HappenedAt:       end.Unix(),
	}
	if archive != "" {
		evt.Stage = StageArchived
	}

	if summary != nil {
		evt.Directories = summary.Dirs()
		evt.TotalFiles = summary.Total()
		evt.TotalCreated = summary.Count(process.JobStatusSucceeded)
		evt.TotalFailed = summary.Count(process.JobStatusFailed)
		evt.TraversalErrors = summary.TraversalErrors()
		evt.FailedPaths = summary.FailedPaths()
		evt.ByKind = make(map[string]KindCounts)
		for _, k := range []img.Kind{img.KindImage, img.KindVideo, img.KindUnsupported} {
			kind := string(k)
			kc := KindCounts{
				Created:     summary.KindCount(kind, process.JobStatusSucceeded),
				Skipped:     summary.KindCount(kind, process.JobStatusSkipped),
				Failed:      summary.KindCount(kind, process.JobStatusFailed),
				Unsupported: summary.KindCount(kind, process.JobStatusUnsupported),
			}
			if kc != (KindCounts{}) {
				evt.ByKind[kind] = kc
			}
		}
	}

	if runErr != nil {
		evt.Stage = StageFailed
		evt.Error = runErr.Error()
		evt.FailureType = failure
	}
	return evt
}
