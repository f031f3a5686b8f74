// Package scoring turns execution steps into 0-100 health scores.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/endpointeval/internal/domain/model"
)

// Scoring rule names, also used as metric label values.
const (
	RuleInsecure             = "insecure"
	RuleResponseStatus       = "response_status"
	RuleTTFBPoor             = "ttfb_poor"
	RuleTTFBNeedsImprovement = "ttfb_needs_improvement"
	RuleCertExpiring         = "cert_expiring"
)

// Deduction points and thresholds.
const (
	maxScore = 100
	minScore = 0

	insecureScheme    = "http://"
	insecureDeduction = 80

	responseStatusThreshold = 400
	responseStatusDeduction = 100

	ttfbPoorThresholdMs             = 1800
	ttfbPoorDeduction               = 15
	ttfbNeedsImprovementThresholdMs = 800
	ttfbNeedsImprovementDeduction   = 10

	certDaysRemainingThreshold = 30
	certExpiringDeduction      = 20

	hoursPerDay = 24
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for certificate expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine scores execution steps. It is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the health score of one step. Deductions are applied in a
// fixed order and the result is clamped to [0,100].
func (e *Engine) Score(step model.Step) model.ScoreReport {
	points := maxScore
	var deductions []model.Deduction

	deduct := func(rule string, n int, reason string) {
		points -= n
		deductions = append(deductions, model.Deduction{Rule: rule, Points: n, Reason: reason})
	}

	insecure := strings.HasPrefix(step.Name, insecureScheme) || !step.PeerCertPresent
	if insecure {
		deduct(RuleInsecure, insecureDeduction, fmt.Sprintf(
			"Removing %d points from %s because page is insecure (served over http not https)",
			insecureDeduction, step.Name))
	}

	if step.ResponseStatusCode > responseStatusThreshold {
		deduct(RuleResponseStatus, responseStatusDeduction, fmt.Sprintf(
			"Removing %d points from %s because response status %d > %d",
			responseStatusDeduction, step.Name, step.ResponseStatusCode, responseStatusThreshold))
	}

	switch {
	case step.TTFB > ttfbPoorThresholdMs:
		deduct(RuleTTFBPoor, ttfbPoorDeduction, fmt.Sprintf(
			"Removing %d points from %s because TTFB > %d", ttfbPoorDeduction, step.Name, ttfbPoorThresholdMs))
	case step.TTFB > ttfbNeedsImprovementThresholdMs:
		deduct(RuleTTFBNeedsImprovement, ttfbNeedsImprovementDeduction, fmt.Sprintf(
			"Removing %d points from %s because TTFB > %d",
			ttfbNeedsImprovementDeduction, step.Name, ttfbNeedsImprovementThresholdMs))
	}

	// Insecure steps have no meaningful certificate to judge.
	if !insecure {
		days := e.certDaysRemaining(step.CertExpiryEpochMS)
		if days < certDaysRemainingThreshold {
			deduct(RuleCertExpiring, certExpiringDeduction, fmt.Sprintf(
				"Removing %d points from %s because cert days remaining (%d) < %d",
				certExpiringDeduction, step.Name, days, certDaysRemainingThreshold))
		}
	}

	report := model.ScoreReport{
		URL:        step.Name,
		Score:      clamp(points),
		Reasons:    make([]string, 0, len(deductions)),
		Deductions: deductions,
	}
	for _, d := range deductions {
		report.Reasons = append(report.Reasons, d.Reason)
	}
	return report
}

// ScoreReport scores every step of an execution report, in step order.
func (e *Engine) ScoreReport(report model.ExecutionReport) []model.ScoreReport {
	out := make([]model.ScoreReport, 0, len(report.Steps))
	for _, step := range report.Steps {
		out = append(out, e.Score(step))
	}
	return out
}

// certDaysRemaining returns whole days until expiry, rounded toward negative
// infinity so an already expired certificate yields a negative count.
func (e *Engine) certDaysRemaining(expiryEpochMS int64) int {
	remaining := time.UnixMilli(expiryEpochMS).Sub(e.now())
	return int(math.Floor(remaining.Hours() / hoursPerDay))
}

func clamp(points int) int {
	if points < minScore {
		return minScore
	}
	if points > maxScore {
		return maxScore
	}
	return points
}
