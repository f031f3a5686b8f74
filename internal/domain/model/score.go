package model

// Deduction is one scoring rule that fired for a step.
type Deduction struct {
	Rule   string
	Points int
	Reason string
}

// ScoreReport is the health score of one step. Reasons mirrors the reason of
// each deduction, in application order.
type ScoreReport struct {
	URL        string
	Score      int
	Reasons    []string
	Deductions []Deduction
}
