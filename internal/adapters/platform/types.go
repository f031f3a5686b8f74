package platform

// Wire types for the monitoring platform API. Only fields the evaluator reads
// are declared on responses.

type entity struct {
	EntityID    string `json:"entityId"`
	DisplayName string `json:"displayName"`
}

type entitiesResponse struct {
	TotalCount  int      `json:"totalCount"`
	NextPageKey string   `json:"nextPageKey"`
	Entities    []entity `json:"entities"`
}

type validationRule struct {
	Value       string `json:"value"`
	PassIfFound bool   `json:"passIfFound"`
	Type        string `json:"type"`
}

type requestConfiguration struct {
	AcceptAnyCertificate          bool `json:"acceptAnyCertificate"`
	FollowRedirects               bool `json:"followRedirects"`
	ShouldNotPersistSensitiveData bool `json:"shouldNotPersistSensitiveData"`
}

type scriptRequest struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	Validation  struct {
		Rules []validationRule `json:"rules"`
	} `json:"validation"`
	Configuration requestConfiguration `json:"configuration"`
}

type script struct {
	Version  string          `json:"version"`
	Requests []scriptRequest `json:"requests"`
}

type outagePolicy struct {
	AffectedLocations *int `json:"affectedLocations,omitempty"`
	ConsecutiveRuns   *int `json:"consecutiveRuns"`
}

type anomalyDetection struct {
	OutageHandling struct {
		GlobalOutage       bool         `json:"globalOutage"`
		GlobalOutagePolicy outagePolicy `json:"globalOutagePolicy"`
		LocalOutage        bool         `json:"localOutage"`
		LocalOutagePolicy  struct {
			AffectedLocations *int `json:"affectedLocations"`
			ConsecutiveRuns   *int `json:"consecutiveRuns"`
		} `json:"localOutagePolicy"`
	} `json:"outageHandling"`
	LoadingTimeThresholds struct {
		Enabled    bool  `json:"enabled"`
		Thresholds []any `json:"thresholds"`
	} `json:"loadingTimeThresholds"`
}

type tag struct {
	Source  string `json:"source"`
	Context string `json:"context"`
	Key     string `json:"key"`
}

type createMonitorRequest struct {
	Name                      string           `json:"name"`
	FrequencyMin              int              `json:"frequencyMin"`
	Enabled                   bool             `json:"enabled"`
	Type                      string           `json:"type"`
	CreatedFrom               string           `json:"createdFrom"`
	Script                    script           `json:"script"`
	Locations                 []string         `json:"locations"`
	AnomalyDetection          anomalyDetection `json:"anomalyDetection"`
	Tags                      []tag            `json:"tags"`
	ManagementZones           []any            `json:"managementZones"`
	AutomaticallyAssignedApps []any            `json:"automaticallyAssignedApps"`
	ManuallyAssignedApps      []any            `json:"manuallyAssignedApps"`
	Requests                  []any            `json:"requests"`
}

type createMonitorResponse struct {
	EntityID string `json:"entityId"`
	Name     string `json:"name"`
}

type monitorRef struct {
	MonitorID string `json:"monitorId"`
}

type batchRequest struct {
	ProcessingMode         string       `json:"processingMode"`
	FailOnPerformanceIssue string       `json:"failOnPerformanceIssue"`
	StopOnProblem          string       `json:"stopOnProblem"`
	Monitors               []monitorRef `json:"monitors"`
	Group                  struct{}     `json:"group"`
}

type executionRef struct {
	ExecutionID string `json:"executionId"`
}

type triggeredMonitor struct {
	MonitorID  string         `json:"monitorId"`
	Executions []executionRef `json:"executions"`
}

type batchTriggerResponse struct {
	BatchID        string             `json:"batchId"`
	TriggeredCount int                `json:"triggeredCount"`
	Triggered      []triggeredMonitor `json:"triggered"`
}

type triggeringProblem struct {
	EntityID string `json:"entityId"`
	Cause    string `json:"cause"`
	Details  string `json:"details"`
}

type batchStatusResponse struct {
	BatchID                 string              `json:"batchId"`
	BatchStatus             string              `json:"batchStatus"`
	TriggeringProblemsCount int                 `json:"triggeringProblemsCount"`
	TriggeringProblems      []triggeringProblem `json:"triggeringProblems"`
}

type executionStep struct {
	RequestName               string  `json:"requestName"`
	ResponseStatusCode        int     `json:"responseStatusCode"`
	TotalTime                 float64 `json:"totalTime"`
	TimeToFirstByte           float64 `json:"timeToFirstByte"`
	PeerCertificateExpiryDate int64   `json:"peerCertificateExpiryDate"`
	PeerCertificateDetails    string  `json:"peerCertificateDetails"`
}

type fullReportResponse struct {
	ExecutionID    string `json:"executionId"`
	ExecutionStage string `json:"executionStage"`
	FullResults    struct {
		Status         string          `json:"status"`
		ExecutionSteps []executionStep `json:"executionSteps"`
	} `json:"fullResults"`
}
