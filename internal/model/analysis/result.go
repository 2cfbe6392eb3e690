package analysis

// Stage tracks the progress of one analysis run.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageUpdating   Stage = "updating"
	StageComplete   Stage = "complete"
)

// Result is the outcome of a finished analysis.
type Result struct {
	Stage        Stage    `json:"stage"`
	Summary      string   `json:"summary"`
	Analysis     string   `json:"analysis,omitempty"`
	MessageCount string   `json:"messageCount,omitempty"`
	Details      []string `json:"details"`
}
