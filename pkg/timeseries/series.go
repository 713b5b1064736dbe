package timeseries

import (
	"sort"
	"time"
)

// Sample is one point in a series. Valid distinguishes a reported value
// (including a real zero) from a point the upstream source never
// returned; the two must never be conflated.
type Sample struct {
	Time  time.Time
	Value float64
	Valid bool
}

func Observed(t time.Time, v float64) Sample {
	return Sample{Time: t, Value: v, Valid: true}
}

func Missing(t time.Time) Sample {
	return Sample{Time: t}
}

// Series is an ordered sequence of samples sharing one nominal
// sampling period.
type Series struct {
	Period  time.Duration
	Samples []Sample
}

func (s Series) Len() int { return len(s.Samples) }

func (s Series) Empty() bool { return len(s.Samples) == 0 }

// ObservedValues returns the valid values in order, dropping gaps.
func (s Series) ObservedValues() []float64 {
	out := make([]float64, 0, len(s.Samples))
	for _, sm := range s.Samples {
		if sm.Valid {
			out = append(out, sm.Value)
		}
	}
	return out
}

// SliceWindow returns the subseries with timestamps in [start, end].
func (s Series) SliceWindow(start, end time.Time) Series {
	out := Series{Period: s.Period}
	for _, sm := range s.Samples {
		if sm.Time.Before(start) || sm.Time.After(end) {
			continue
		}
		out.Samples = append(out.Samples, sm)
	}
	return out
}

// SortAndDedup orders samples ascending by timestamp and collapses
// duplicate timestamps, preferring a valid sample over an invalid one.
// Upstream chunked responses carry no ordering guarantee, so every
// merged series goes through this before further processing.
func (s *Series) SortAndDedup() {
	if len(s.Samples) < 2 {
		return
	}
	sort.SliceStable(s.Samples, func(i, j int) bool {
		return s.Samples[i].Time.Before(s.Samples[j].Time)
	})
	out := s.Samples[:1]
	for _, sm := range s.Samples[1:] {
		last := &out[len(out)-1]
		if sm.Time.Equal(last.Time) {
			if sm.Valid && !last.Valid {
				*last = sm
			}
			continue
		}
		out = append(out, sm)
	}
	s.Samples = out
}
