package batch

import "strings"

// Classification tells the state machine how to react to a triggering problem.
type Classification int

const (
	// Fatal problems abort the run.
	Fatal Classification = iota
	// Recoverable problems are fixed by triggering a fresh batch later.
	Recoverable
)

func (c Classification) String() string {
	if c == Recoverable {
		return "recoverable"
	}
	return "fatal"
}

// recoverableCauses are substrings of causes the platform reports while a
// freshly created monitor is still being propagated to its locations.
var recoverableCauses = []string{ //nolint:gochecknoglobals // fixed match list
	"configuration is being synchronized",
}

// ClassifyCause classifies a triggering problem cause.
func ClassifyCause(cause string) Classification {
	for _, s := range recoverableCauses {
		if strings.Contains(cause, s) {
			return Recoverable
		}
	}
	return Fatal
}

// classifyAll is Recoverable only when every cause is recoverable. It also
// returns the first fatal cause, if any.
func classifyAll(causes []string) (Classification, string) {
	for _, c := range causes {
		if ClassifyCause(c) == Fatal {
			return Fatal, c
		}
	}
	return Recoverable, ""
}
