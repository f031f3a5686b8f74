package model

// Monitor is an existing synthetic monitor on the platform.
type Monitor struct {
	ID          string
	DisplayName string
}

// MonitorSpec is the fixed template used to create an HTTP monitor for a URL.
type MonitorSpec struct {
	Name      string // equals the endpoint URL
	URL       string
	Tag       string
	Locations []string

	FrequencyMin              int
	Enabled                   bool
	AcceptAnyCertificate      bool
	FollowRedirects           bool
	DoNotPersistSensitiveData bool
	// FailOnStatus is the validation expression that marks a run failed.
	FailOnStatus string
	// OutageConsecutiveRuns is the global outage policy threshold.
	OutageConsecutiveRuns int
}

// NewMonitorSpec returns the creation template for url.
func NewMonitorSpec(url, tag string, locations []string) MonitorSpec {
	return MonitorSpec{
		Name:                      url,
		URL:                       url,
		Tag:                       tag,
		Locations:                 append([]string(nil), locations...),
		FrequencyMin:              0,
		Enabled:                   true,
		AcceptAnyCertificate:      true,
		FollowRedirects:           true,
		DoNotPersistSensitiveData: true,
		FailOnStatus:              ">=400",
		OutageConsecutiveRuns:     1,
	}
}

// Triggered lists the executions a batch started for one monitor.
type Triggered struct {
	MonitorID  string
	Executions []ExecutionRef
}
