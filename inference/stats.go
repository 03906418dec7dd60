package inference

import (
	"sync"
	"time"
)

// Stats summarizes the inference calls of an engine.
type Stats struct {
	// Inferences is the number of successful model evaluations.
	Inferences int64 `json:"inferences"`
	// Failures is the number of evaluations that returned an error.
	Failures int64 `json:"failures"`
	// Total is the summed duration of the successful evaluations.
	Total time.Duration `json:"total"`
	// Last is the duration of the most recent successful evaluation.
	Last time.Duration `json:"last"`
}

// Average returns the mean duration of a successful evaluation.
func (s Stats) Average() time.Duration {
	if s.Inferences == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Inferences)
}

// profiler records inference timings.
type profiler struct {
	mu    sync.RWMutex
	stats Stats
}

func (p *profiler) record(d time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.stats.Failures++
		return
	}
	p.stats.Inferences++
	p.stats.Total += d
	p.stats.Last = d
}

func (p *profiler) snapshot() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
