package state

import "time"

// DocumentMeta carries the classification metadata attached to a document at
// registration time. Fields are immutable after creation except where a
// later registration fills a not-yet-set value.
type DocumentMeta struct {
	DocumentType string   `json:"document_type,omitempty"`
	Access       string   `json:"access,omitempty"`
	Language     []string `json:"language,omitempty"`
	Country      string   `json:"country,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	Section      string   `json:"section,omitempty"`
	OutputFolder string   `json:"output_folder,omitempty"`
}

// StepState is the persisted progress of a single pipeline step.
type StepState struct {
	Status    Status     `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

// StepError records a failure of a specific step.
type StepError struct {
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the per-document ledger entry. It is owned by the Store and
// mutated only through Store methods.
type Record struct {
	URL              string               `json:"url"`
	OriginalFilename string               `json:"original_filename"`
	Metadata         DocumentMeta         `json:"metadata"`
	Status           Status               `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	Steps            map[string]StepState `json:"steps"`
	Files            map[string]string    `json:"files"`
	Errors           []StepError          `json:"errors"`
}

// NewRecord creates a record with every pipeline step initialized to Pending.
func NewRecord(url, filename string, meta DocumentMeta) *Record {
	steps := make(map[string]StepState, len(Steps()))
	for _, name := range Steps() {
		steps[name] = StepState{Status: StatusPending}
	}
	return &Record{
		URL:              url,
		OriginalFilename: filename,
		Metadata:         meta,
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
		Steps:            steps,
		Files:            make(map[string]string),
		Errors:           []StepError{},
	}
}

// StepStatus returns the status of the named step, Pending if unknown.
func (r *Record) StepStatus(step string) Status {
	if s, ok := r.Steps[step]; ok {
		return s.Status
	}
	return StatusPending
}

// ArtifactPath returns the artifact path recorded for a step, if any.
func (r *Record) ArtifactPath(step string) (string, bool) {
	p, ok := r.Files[step]
	return p, ok
}
