package metrics

import "sync"

// Mock records calls in memory. It is safe for concurrent use.
type Mock struct {
	mu                    sync.Mutex
	resultsSubmitted      int
	liveScoreUpdates      int
	matchResets           int
	advancements          map[string]int
	playoffRecalculations int
	durations             []float64
}

func NewMock() *Mock {
	return &Mock{advancements: make(map[string]int)}
}

func (m *Mock) IncResultsSubmitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultsSubmitted++
}

func (m *Mock) IncLiveScoreUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveScoreUpdates++
}

func (m *Mock) IncMatchResets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchResets++
}

func (m *Mock) IncAdvancement(policy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advancements[policy]++
}

func (m *Mock) IncPlayoffRecalculations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playoffRecalculations++
}

func (m *Mock) ObserveAdvancementDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, duration)
}

func (m *Mock) ResultsSubmitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultsSubmitted
}

func (m *Mock) LiveScoreUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveScoreUpdates
}

func (m *Mock) MatchResets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchResets
}

// Advancements returns how many passes of the given policy changed the bracket.
func (m *Mock) Advancements(policy string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advancements[policy]
}

func (m *Mock) PlayoffRecalculations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playoffRecalculations
}

func (m *Mock) Durations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.durations...)
}
