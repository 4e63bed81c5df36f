package output

// Event types emitted over one survey run, in lifecycle order.
const (
	EventRunStarted   = "run.started"
	EventRepoStarted  = "repo.started"
	EventCodeAnalyzed = "code.analyzed"
	EventRepoFinished = "repo.finished"
	EventRunFinished  = "run.finished"
)

// Event is one survey lifecycle record. In NDJSON modes, sinks emit one
// JSON object per line; the JSON aggregate mode collects code.analyzed
// events into a single array.
type Event struct {
	Type string `json:"type"`

	// RunID is set on run.started and run.finished.
	RunID string `json:"run_id,omitempty"`

	Source   string `json:"source,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Analyzer string `json:"analyzer,omitempty"`
	Code     string `json:"code,omitempty"`

	// Features maps feature names to occurrence counts for code.analyzed
	// events. Skipped features are absent.
	Features map[string]int `json:"features,omitempty"`

	// Repos and Codes are the final counters on run.finished.
	Repos int `json:"repos,omitempty"`
	Codes int `json:"codes,omitempty"`
}
