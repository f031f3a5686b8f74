// Package model contains domain models passed between pipeline stages.
package model

// Endpoint is a URL under evaluation and the monitor that exercises it.
// URL is the identity key; MonitorID stays empty until reconciliation.
type Endpoint struct {
	URL        string
	MonitorID  string
	Executions []ExecutionRef // set only after the batch is triggered
}

// HasMonitor reports whether a remote monitor was assigned.
func (e Endpoint) HasMonitor() bool { return e.MonitorID != "" }

// ExecutionRef identifies one run of a monitor on one location.
type ExecutionRef struct {
	ExecutionID string
}

// MonitorIDs returns the monitor ID of every endpoint, in order.
func MonitorIDs(endpoints []Endpoint) []string {
	ids := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		ids = append(ids, e.MonitorID)
	}
	return ids
}
