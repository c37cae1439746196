package ui

import (
	"github.com/linuxmatters/clinivox/internal/pipeline"
)

// ProgressMsg represents a progress update from the pipeline
type ProgressMsg struct {
	pipeline.Progress
}

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex  int
	Result     *pipeline.FileResult
	ReportPath string // empty unless a session report was written
	Error      error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
