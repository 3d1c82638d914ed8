package state

// Status represents the processing status of a document or a single step.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDownloaded Status = "downloaded"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Pipeline step names, in execution order.
const (
	StepDownload  = "download"
	StepExtract   = "extract"
	StepStructure = "structure"
)

// Steps returns the pipeline step names in execution order.
func Steps() []string {
	return []string{StepDownload, StepExtract, StepStructure}
}

// DeriveStatus computes the overall document status from its step statuses.
// Failed wins over everything, Completed requires every step completed, and
// a document with a finished download but unfinished later steps is
// Downloaded. Pure function so status derivation is testable in isolation.
func DeriveStatus(steps map[string]StepState) Status {
	if len(steps) == 0 {
		return StatusPending
	}

	completed := 0
	for _, s := range steps {
		switch s.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCompleted:
			completed++
		}
	}

	if completed == len(steps) {
		return StatusCompleted
	}
	if dl, ok := steps[StepDownload]; ok && dl.Status == StatusCompleted {
		return StatusDownloaded
	}
	return StatusPending
}
