package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"

	degradedThreshold  = 3
	unhealthyThreshold = 5
	latencyWindowSize  = 100
)

// SourceStats is a point-in-time view of one external lookup source.
type SourceStats struct {
	Name            string      `json:"name"`
	State           HealthState `json:"state"`
	TotalRequests   int64       `json:"total_requests"`
	SuccessCount    int64       `json:"success_count"`
	FailureCount    int64       `json:"failure_count"`
	ConsecFailures  int         `json:"consecutive_failures"`
	LastError       string      `json:"last_error,omitempty"`
	LastErrorTime   *time.Time  `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time  `json:"last_success_time,omitempty"`
	AvgLatencyMs    float64     `json:"avg_latency_ms"`
}

type source struct {
	mu             sync.RWMutex
	name           string
	totalRequests  int64
	successCount   int64
	failureCount   int64
	consecFailures int
	lastError      string
	lastErrorTime  time.Time
	lastSuccess    time.Time
	latencies      []float64
	latencyIdx     int
	latencyFull    bool
}

// Registry tracks the health of external reputation and lookup sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*source)}
}

func (r *Registry) get(name string) *source {
	r.mu.RLock()
	s, ok := r.sources[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sources[name]; ok {
		return s
	}
	s = &source{name: name, latencies: make([]float64, latencyWindowSize)}
	r.sources[name] = s
	return s
}

func (r *Registry) RecordSuccess(name string, latency time.Duration) {
	s := r.get(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.successCount++
	s.consecFailures = 0
	s.lastSuccess = time.Now()
	s.latencies[s.latencyIdx] = float64(latency.Milliseconds())
	s.latencyIdx++
	if s.latencyIdx >= latencyWindowSize {
		s.latencyIdx = 0
		s.latencyFull = true
	}
}

func (r *Registry) RecordFailure(name string, err error) {
	s := r.get(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.failureCount++
	s.consecFailures++
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastErrorTime = time.Now()
}

func (r *Registry) Stats(name string) SourceStats {
	return r.get(name).stats()
}

func (r *Registry) AllStats() []SourceStats {
	r.mu.RLock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)

	out := make([]SourceStats, 0, len(names))
	for _, name := range names {
		out = append(out, r.Stats(name))
	}
	return out
}

func (s *source) stats() SourceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SourceStats{
		Name:           s.name,
		State:          Healthy,
		TotalRequests:  s.totalRequests,
		SuccessCount:   s.successCount,
		FailureCount:   s.failureCount,
		ConsecFailures: s.consecFailures,
		LastError:      s.lastError,
	}

	if s.consecFailures >= unhealthyThreshold {
		st.State = Unhealthy
	} else if s.consecFailures >= degradedThreshold {
		st.State = Degraded
	}

	if !s.lastErrorTime.IsZero() {
		t := s.lastErrorTime
		st.LastErrorTime = &t
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		st.LastSuccessTime = &t
	}

	n := s.latencyIdx
	if s.latencyFull {
		n = latencyWindowSize
	}
	if n > 0 {
		var sum float64
		for i := 0; i < n; i++ {
			sum += s.latencies[i]
		}
		st.AvgLatencyMs = sum / float64(n)
	}

	return st
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
