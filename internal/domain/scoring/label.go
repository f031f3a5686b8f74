package scoring

// Score labels used by reports.
const (
	LabelPass    = "pass"
	LabelWarning = "warning"
	LabelFail    = "fail"
)

// Default label thresholds.
const (
	DefaultWarningThreshold = 80
	DefaultFailThreshold    = 50
)

// Label maps a score to pass (>= warn), warning (>= fail) or fail.
func Label(score, warn, fail int) string {
	switch {
	case score >= warn:
		return LabelPass
	case score >= fail:
		return LabelWarning
	default:
		return LabelFail
	}
}
