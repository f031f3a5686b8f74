// Package platform is the HTTP client for the synthetic monitoring platform.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/endpointeval/internal/domain/batch"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// API paths.
const (
	entitiesPath     = "/api/v2/entities"
	monitorsPath     = "/api/v1/synthetic/monitors"
	batchPath        = "/api/v2/synthetic/executions/batch"
	executionsPath   = "/api/v2/synthetic/executions"
	fullReportSuffix = "/fullReport"
)

// Operation names used in errors and metrics.
const (
	OpListMonitors  = "list_monitors"
	OpCreateMonitor = "create_monitor"
	OpTriggerBatch  = "trigger_batch"
	OpGetBatch      = "get_batch"
	OpFullReport    = "full_report"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "endpointeval"
	maxErrorBody     = 512
	maxEntityPages   = 100
)

// Client is a thin HTTP client for the platform API. It is read-only after
// construction and safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	timeout   time.Duration
	userAgent string
	log       logger.Logger
}

// NewClient creates a client for baseURL (e.g. https://abc123.live.example.com)
// authenticating with an API token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// ListMonitors returns every HTTP monitor carrying tag, following pagination.
// It fails rather than return a truncated list.
func (c *Client) ListMonitors(ctx context.Context, tag string) ([]model.Monitor, error) {
	q := url.Values{}
	q.Set("entitySelector", fmt.Sprintf("type(HTTP_CHECK),tag(%s)", tag))
	path := entitiesPath + "?" + q.Encode()

	var monitors []model.Monitor
	for page := 0; page < maxEntityPages; page++ {
		var resp entitiesResponse
		if err := c.do(ctx, OpListMonitors, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			monitors = append(monitors, model.Monitor{ID: e.EntityID, DisplayName: e.DisplayName})
		}
		if resp.NextPageKey == "" {
			return monitors, nil
		}
		next := url.Values{}
		next.Set("nextPageKey", resp.NextPageKey)
		path = entitiesPath + "?" + next.Encode()
	}
	// A partial listing would make existing monitors look missing.
	return nil, fmt.Errorf("%w %s: pagination exceeded %d pages", ErrRequest, OpListMonitors, maxEntityPages)
}

// CreateMonitor creates an HTTP monitor from spec and returns its entity ID.
func (c *Client) CreateMonitor(ctx context.Context, spec model.MonitorSpec) (string, error) {
	var resp createMonitorResponse
	if err := c.do(ctx, OpCreateMonitor, http.MethodPost, monitorsPath, newCreateMonitorRequest(spec), &resp); err != nil {
		return "", err
	}
	return resp.EntityID, nil
}

// TriggerBatch starts one batch execution covering monitorIDs.
func (c *Client) TriggerBatch(ctx context.Context, monitorIDs []string) (batch.TriggerResult, error) {
	req := batchRequest{
		ProcessingMode:         "EXECUTIONS_DETAILS_ONLY",
		FailOnPerformanceIssue: "false",
		StopOnProblem:          "false",
		Monitors:               make([]monitorRef, 0, len(monitorIDs)),
	}
	for _, id := range monitorIDs {
		req.Monitors = append(req.Monitors, monitorRef{MonitorID: id})
	}

	var resp batchTriggerResponse
	if err := c.do(ctx, OpTriggerBatch, http.MethodPost, batchPath, req, &resp); err != nil {
		return batch.TriggerResult{}, err
	}

	out := batch.TriggerResult{BatchID: resp.BatchID, Triggered: make([]model.Triggered, 0, len(resp.Triggered))}
	for _, t := range resp.Triggered {
		refs := make([]model.ExecutionRef, 0, len(t.Executions))
		for _, e := range t.Executions {
			refs = append(refs, model.ExecutionRef{ExecutionID: e.ExecutionID})
		}
		out.Triggered = append(out.Triggered, model.Triggered{MonitorID: t.MonitorID, Executions: refs})
	}
	return out, nil
}

// GetBatch returns the current state of a batch.
func (c *Client) GetBatch(ctx context.Context, batchID string) (batch.BatchState, error) {
	var resp batchStatusResponse
	if err := c.do(ctx, OpGetBatch, http.MethodGet, batchPath+"/"+url.PathEscape(batchID), nil, &resp); err != nil {
		return batch.BatchState{}, err
	}

	state := batch.BatchState{
		Status:        batch.Status(resp.BatchStatus),
		ProblemsCount: resp.TriggeringProblemsCount,
	}
	for _, p := range resp.TriggeringProblems {
		state.Causes = append(state.Causes, p.Cause)
	}
	return state, nil
}

// FullReport returns the full report of an execution. An empty
// peerCertificateDetails means no certificate was presented.
func (c *Client) FullReport(ctx context.Context, executionID string) (model.ExecutionReport, error) {
	var resp fullReportResponse
	path := executionsPath + "/" + url.PathEscape(executionID) + fullReportSuffix
	if err := c.do(ctx, OpFullReport, http.MethodGet, path, nil, &resp); err != nil {
		return model.ExecutionReport{}, err
	}

	report := model.ExecutionReport{
		ExecutionID: executionID,
		Stage:       model.ExecutionStage(resp.ExecutionStage),
		Status:      resp.FullResults.Status,
		Steps:       make([]model.Step, 0, len(resp.FullResults.ExecutionSteps)),
	}
	for _, s := range resp.FullResults.ExecutionSteps {
		report.Steps = append(report.Steps, model.Step{
			Name:               s.RequestName,
			ResponseStatusCode: s.ResponseStatusCode,
			TotalTime:          s.TotalTime,
			TTFB:               s.TimeToFirstByte,
			CertExpiryEpochMS:  s.PeerCertificateExpiryDate,
			PeerCertPresent:    s.PeerCertificateDetails != "",
		})
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrRequest, op, err)
	}
	req.Header.Set("Authorization", "Api-Token "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordPlatformRequest(op, 0, latencyMs)
		return fmt.Errorf("%w %s: %w", ErrRequest, op, err)
	}
	defer func() { _ = res.Body.Close() }()
	metrics.RecordPlatformRequest(op, res.StatusCode, latencyMs)

	c.log.Debug(ctx, "platform call",
		logger.String("op", op),
		logger.String("method", method),
		logger.Int("status", res.StatusCode),
		logger.Float64("latency_ms", latencyMs),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w %s: %w", ErrDecode, op, err)
	}
	return nil
}

func newCreateMonitorRequest(spec model.MonitorSpec) createMonitorRequest {
	consecutive := spec.OutageConsecutiveRuns

	req := scriptRequest{
		Description: spec.URL,
		URL:         spec.URL,
		Method:      http.MethodGet,
		Configuration: requestConfiguration{
			AcceptAnyCertificate:          spec.AcceptAnyCertificate,
			FollowRedirects:               spec.FollowRedirects,
			ShouldNotPersistSensitiveData: spec.DoNotPersistSensitiveData,
		},
	}
	req.Validation.Rules = []validationRule{{Value: spec.FailOnStatus, PassIfFound: false, Type: "httpStatusesList"}}

	var ad anomalyDetection
	ad.OutageHandling.GlobalOutage = true
	ad.OutageHandling.GlobalOutagePolicy = outagePolicy{ConsecutiveRuns: &consecutive}
	ad.LoadingTimeThresholds.Enabled = true
	ad.LoadingTimeThresholds.Thresholds = []any{}

	locations := spec.Locations
	if locations == nil {
		locations = []string{}
	}

	return createMonitorRequest{
		Name:                      spec.Name,
		FrequencyMin:              spec.FrequencyMin,
		Enabled:                   spec.Enabled,
		Type:                      "HTTP",
		CreatedFrom:               "API",
		Script:                    script{Version: "1.0", Requests: []scriptRequest{req}},
		Locations:                 locations,
		AnomalyDetection:          ad,
		Tags:                      []tag{{Source: "USER", Context: "CONTEXTLESS", Key: spec.Tag}},
		ManagementZones:           []any{},
		AutomaticallyAssignedApps: []any{},
		ManuallyAssignedApps:      []any{},
		Requests:                  []any{},
	}
}
