package model

// ExecutionStage is the platform-reported lifecycle stage of an execution.
type ExecutionStage string

// Known execution stages.
const (
	StageTriggered     ExecutionStage = "TRIGGERED"
	StageExecuted      ExecutionStage = "EXECUTED"
	StageDataRetrieved ExecutionStage = "DATA_RETRIEVED"
)

// IsTerminal reports whether the full report is available.
func (s ExecutionStage) IsTerminal() bool {
	return s == StageDataRetrieved
}

// ExecutionReport is the full report of one execution.
type ExecutionReport struct {
	ExecutionID string
	Stage       ExecutionStage
	Status      string
	Steps       []Step
}

// Step is one HTTP request inside an execution. Times are milliseconds.
type Step struct {
	Name               string
	ResponseStatusCode int
	TotalTime          float64
	TTFB               float64
	CertExpiryEpochMS  int64
	PeerCertPresent    bool
}
