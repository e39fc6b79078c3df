package metrics

import (
	"math"
	"time"
)

// StepTime accumulates scene step durations.
type StepTime struct {
	samples []float64
	total   float64
	max     float64
}

func NewStepTime() *StepTime {
	return &StepTime{}
}

func (s *StepTime) Name() string { return "step_time_ms" }

func (s *StepTime) Observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	s.samples = append(s.samples, ms)
	s.total += ms
	s.max = math.Max(s.max, ms)
}

// Value returns the mean step time in milliseconds.
func (s *StepTime) Value() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.total / float64(len(s.samples))
}

func (s *StepTime) Max() float64 { return s.max }

// Samples returns every observed step time in milliseconds.
func (s *StepTime) Samples() []float64 {
	return append([]float64(nil), s.samples...)
}

func (s *StepTime) Reset() {
	s.samples = nil
	s.total = 0
	s.max = 0
}
