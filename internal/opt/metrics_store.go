package opt

import "sync"

// Solver runs are keyed by the caller-assigned run id so recent searches can
// be inspected after the fact.

var (
	mu      sync.Mutex
	runMets = map[string]Metrics{}
)

func RecordMetrics(runID string, m Metrics) {
	mu.Lock()
	runMets[runID] = m
	mu.Unlock()
}

func GetMetrics(runID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := runMets[runID]
	return m, ok
}
