package platformsim

import (
	"time"

	"github.com/okian/endpointeval/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithToken requires every API call to carry "Api-Token <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithSyncRounds makes the first n batches report that monitor
// configuration is still synchronizing.
func WithSyncRounds(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.syncRounds = n
		}
	}
}

// WithRunningPolls keeps an accepted batch RUNNING for n polls.
func WithRunningPolls(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.runningPolls = n
		}
	}
}

// WithPendingFetches reports an execution as TRIGGERED for its first n
// report fetches.
func WithPendingFetches(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.pendingFetches = n
		}
	}
}

// WithFinalStatus sets the status an accepted batch settles on.
func WithFinalStatus(status string) Option {
	return func(s *Server) {
		if status != "" {
			s.finalStatus = status
		}
	}
}

// WithTriggerProblem makes every batch report cause as a triggering problem.
func WithTriggerProblem(cause string) Option {
	return func(s *Server) { s.problem = cause }
}

// WithMonitor seeds an existing monitor.
func WithMonitor(name, tag string) Option {
	return func(s *Server) {
		s.seed = append(s.seed, monitor{name: name, tag: tag, locations: []string{DefaultLocation}})
	}
}

// WithSteps replaces the canned steps reported for url.
func WithSteps(url string, steps ...Step) Option {
	return func(s *Server) { s.steps[url] = steps }
}

// WithPageSize sets the entity page size.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces the clock used for certificate expiry dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
