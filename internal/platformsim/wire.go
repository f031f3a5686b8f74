package platformsim

// Request and response bodies, shaped like the real platform API.

type entity struct {
	EntityID    string `json:"entityId"`
	DisplayName string `json:"displayName"`
}

type entitiesResponse struct {
	TotalCount  int      `json:"totalCount"`
	PageSize    int      `json:"pageSize"`
	NextPageKey string   `json:"nextPageKey,omitempty"`
	Entities    []entity `json:"entities"`
}

type createMonitorRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Locations []string `json:"locations"`
	Tags      []struct {
		Key string `json:"key"`
	} `json:"tags"`
	Script struct {
		Requests []struct {
			URL string `json:"url"`
		} `json:"requests"`
	} `json:"script"`
}

type createMonitorResponse struct {
	EntityID string `json:"entityId"`
	Name     string `json:"name"`
}

type batchRequest struct {
	Monitors []struct {
		MonitorID string `json:"monitorId"`
	} `json:"monitors"`
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
	TriggeredCount          int                 `json:"triggeredCount"`
	TriggeringProblemsCount int                 `json:"triggeringProblemsCount"`
	TriggeringProblems      []triggeringProblem `json:"triggeringProblems"`
}

type executionStep struct {
	RequestName               string  `json:"requestName"`
	ResponseStatusCode        int     `json:"responseStatusCode"`
	TotalTime                 float64 `json:"totalTime"`
	TimeToFirstByte           float64 `json:"timeToFirstByte"`
	PeerCertificateExpiryDate int64   `json:"peerCertificateExpiryDate,omitempty"`
	PeerCertificateDetails    string  `json:"peerCertificateDetails"`
}

type fullResults struct {
	Status         string          `json:"status,omitempty"`
	ExecutionSteps []executionStep `json:"executionSteps"`
}

type fullReportResponse struct {
	ExecutionID    string      `json:"executionId"`
	MonitorID      string      `json:"monitorId"`
	ExecutionStage string      `json:"executionStage"`
	FullResults    fullResults `json:"fullResults"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Monitors int    `json:"monitors"`
}
