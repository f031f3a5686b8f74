// Package platformsim is an in-memory stand-in for the synthetic monitoring
// platform API. It serves the five calls the evaluator makes and lets tests
// and local dry runs script synchronization delays, RUNNING batches and slow
// execution reports.
package platformsim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// SyncCause is the triggering problem reported while monitors synchronize.
const SyncCause = "Monitor's configuration is being synchronized. Please try in a moment."

// DefaultLocation is assigned to seeded monitors.
const DefaultLocation = "SYNTHETIC_LOCATION-0000000000000001"

// Execution stages and batch statuses the simulator reports.
const (
	stageTriggered     = "TRIGGERED"
	stageDataRetrieved = "DATA_RETRIEVED"

	statusRunning      = "RUNNING"
	statusSuccess      = "SUCCESS"
	statusNotTriggered = "NOT_TRIGGERED"
)

const (
	defaultPageSize = 100
	certLifetime    = 365 * 24 * time.Hour

	executionsPrefix = "/api/v2/synthetic/executions/"
	fullReportSuffix = "/fullReport"
)

var tagSelector = regexp.MustCompile(`tag\(([^)]*)\)`) //nolint:gochecknoglobals // compiled once

// Step is one canned request result.
type Step struct {
	Name        string
	StatusCode  int
	TotalTime   float64
	TTFB        float64
	CertExpiry  time.Time
	CertDetails string
}

// Stats counts the calls the simulator has served.
type Stats struct {
	MonitorsCreated int
	Triggers        int
	BatchPolls      int
	ReportFetches   int
}

type monitor struct {
	id        string
	name      string
	url       string
	tag       string
	locations []string
}

type batchState struct {
	id       string
	round    int
	monitors []string
	polls    int
}

type executionState struct {
	id        string
	monitorID string
	url       string
	fetches   int
}

// Server is the simulated platform. It is safe for concurrent use.
type Server struct {
	mu sync.Mutex

	token          string
	syncRounds     int
	runningPolls   int
	pendingFetches int
	finalStatus    string
	problem        string
	pageSize       int
	seed           []monitor
	steps          map[string][]Step
	now            func() time.Time
	log            logger.Logger

	monitors   []*monitor
	byID       map[string]*monitor
	batches    map[string]*batchState
	executions map[string]*executionState
	nextID     int
	stats      Stats

	mux *http.ServeMux
}

// New creates a simulator with configuration options.
func New(opts ...Option) *Server {
	s := &Server{
		finalStatus: statusSuccess,
		pageSize:    defaultPageSize,
		steps:       make(map[string][]Step),
		now:         time.Now,
		log:         logger.Nop(),
		byID:        make(map[string]*monitor),
		batches:     make(map[string]*batchState),
		executions:  make(map[string]*executionState),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, m := range s.seed {
		s.addMonitor(m)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/api/v2/entities", s.auth(s.handleEntities))
	s.mux.HandleFunc("/api/v1/synthetic/monitors", s.auth(s.handleCreateMonitor))
	s.mux.HandleFunc("/api/v2/synthetic/executions/batch", s.auth(s.handleTriggerBatch))
	s.mux.HandleFunc(executionsPrefix, s.auth(s.handleExecutions))
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/metrics", handleMetrics)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Stats returns a snapshot of the call counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// MonitorNames returns the display name of every monitor, in creation order.
func (s *Server) MonitorNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.monitors))
	for _, m := range s.monitors {
		names = append(names, m.name)
	}
	return names
}

// addMonitor must be called with mu held or before the server is shared.
func (s *Server) addMonitor(m monitor) string {
	m.id = s.newID("HTTP_CHECK")
	if m.url == "" {
		m.url = m.name
	}
	s.monitors = append(s.monitors, &m)
	s.byID[m.id] = &m
	return m.id
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%016X", prefix, s.nextID)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Api-Token "+s.token {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization token")
			return
		}
		next(w, r)
	}
}

// handleHealth reports liveness. It needs no token.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	n := len(s.monitors)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Monitors: n})
}

// handleMetrics serves the current metrics registry.
func handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset, tag := 0, ""
	if key := r.URL.Query().Get("nextPageKey"); key != "" {
		rawOffset, rawTag, ok := strings.Cut(key, ":")
		n, err := strconv.Atoi(rawOffset)
		if !ok || err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid nextPageKey")
			return
		}
		offset, tag = n, rawTag
	} else if m := tagSelector.FindStringSubmatch(r.URL.Query().Get("entitySelector")); m != nil {
		tag = m[1]
	}

	s.mu.Lock()
	var matching []entity
	for _, m := range s.monitors {
		if tag == "" || m.tag == tag {
			matching = append(matching, entity{EntityID: m.id, DisplayName: m.name})
		}
	}
	s.mu.Unlock()

	resp := entitiesResponse{TotalCount: len(matching), PageSize: s.pageSize, Entities: []entity{}}
	if offset < len(matching) {
		end := min(offset+s.pageSize, len(matching))
		resp.Entities = matching[offset:end]
		if end < len(matching) {
			resp.NextPageKey = strconv.Itoa(end) + ":" + tag
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Locations) == 0 {
		writeError(w, http.StatusBadRequest, "name and locations are required")
		return
	}

	m := monitor{name: req.Name, locations: req.Locations}
	if len(req.Tags) > 0 {
		m.tag = req.Tags[0].Key
	}
	if len(req.Script.Requests) > 0 {
		m.url = req.Script.Requests[0].URL
	}

	s.mu.Lock()
	id := s.addMonitor(m)
	s.stats.MonitorsCreated++
	s.mu.Unlock()

	s.log.Info(r.Context(), "monitor created", logger.String("monitor_id", id), logger.String("name", req.Name))
	writeJSON(w, http.StatusOK, createMonitorResponse{EntityID: id, Name: req.Name})
}

func (s *Server) handleTriggerBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	b := &batchState{id: s.newID("BATCH"), round: s.stats.Triggers}
	s.stats.Triggers++
	resp := batchTriggerResponse{BatchID: b.id, Triggered: []triggeredMonitor{}}
	for _, ref := range req.Monitors {
		m, ok := s.byID[ref.MonitorID]
		if !ok {
			continue
		}
		b.monitors = append(b.monitors, m.id)
		tm := triggeredMonitor{MonitorID: m.id}
		for range m.locations {
			ex := &executionState{id: s.newID("EXEC"), monitorID: m.id, url: m.url}
			s.executions[ex.id] = ex
			tm.Executions = append(tm.Executions, executionRef{ExecutionID: ex.id})
		}
		resp.Triggered = append(resp.Triggered, tm)
		resp.TriggeredCount += len(tm.Executions)
	}
	s.batches[b.id] = b
	s.mu.Unlock()

	s.log.Info(r.Context(), "batch triggered",
		logger.String("batch_id", b.id),
		logger.Int("executions", resp.TriggeredCount),
	)
	writeJSON(w, http.StatusCreated, resp)
}

// handleExecutions serves batch status and full reports, which share a prefix.
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, executionsPrefix)
	switch {
	case strings.HasPrefix(rest, "batch/"):
		id, _ := url.PathUnescape(strings.TrimPrefix(rest, "batch/"))
		s.handleGetBatch(w, id)
	case strings.HasSuffix(rest, fullReportSuffix):
		id, _ := url.PathUnescape(strings.TrimSuffix(rest, fullReportSuffix))
		s.handleFullReport(w, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetBatch(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		writeError(w, http.StatusNotFound, "batch "+id+" not found")
		return
	}
	b.polls++
	s.stats.BatchPolls++

	resp := batchStatusResponse{BatchID: b.id, TriggeredCount: len(b.monitors), TriggeringProblems: []triggeringProblem{}}
	switch {
	case s.problem != "" || b.round < s.syncRounds:
		cause := s.problem
		if cause == "" {
			cause = SyncCause
		}
		resp.BatchStatus = statusNotTriggered
		for _, mid := range b.monitors {
			resp.TriggeringProblems = append(resp.TriggeringProblems, triggeringProblem{EntityID: mid, Cause: cause})
		}
		resp.TriggeringProblemsCount = len(resp.TriggeringProblems)
	case b.polls <= s.runningPolls:
		resp.BatchStatus = statusRunning
	default:
		resp.BatchStatus = s.finalStatus
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFullReport(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.executions[id]
	if !ok {
		writeError(w, http.StatusNotFound, "execution "+id+" not found")
		return
	}
	ex.fetches++
	s.stats.ReportFetches++

	resp := fullReportResponse{ExecutionID: ex.id, MonitorID: ex.monitorID, ExecutionStage: stageTriggered}
	resp.FullResults.ExecutionSteps = []executionStep{}
	if ex.fetches > s.pendingFetches {
		resp.ExecutionStage = stageDataRetrieved
		resp.FullResults.Status = statusSuccess
		for _, st := range s.stepsFor(ex.url) {
			es := executionStep{
				RequestName:            st.Name,
				ResponseStatusCode:     st.StatusCode,
				TotalTime:              st.TotalTime,
				TimeToFirstByte:        st.TTFB,
				PeerCertificateDetails: st.CertDetails,
			}
			if !st.CertExpiry.IsZero() {
				es.PeerCertificateExpiryDate = st.CertExpiry.UnixMilli()
			}
			resp.FullResults.ExecutionSteps = append(resp.FullResults.ExecutionSteps, es)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// stepsFor returns the canned steps for u, or one healthy request. Plain
// http URLs present no certificate.
func (s *Server) stepsFor(u string) []Step {
	if steps, ok := s.steps[u]; ok {
		return steps
	}
	st := Step{Name: u, StatusCode: http.StatusOK, TotalTime: 250, TTFB: 120}
	if parsed, err := url.Parse(u); err == nil && parsed.Scheme == "https" {
		st.CertExpiry = s.now().Add(certLifetime)
		st.CertDetails = "CN=" + parsed.Hostname()
	}
	return []Step{st}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var resp errorResponse
	resp.Error.Code = status
	resp.Error.Message = msg
	writeJSON(w, status, resp)
}
