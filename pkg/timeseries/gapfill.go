package timeseries

import "time"

// FillGaps expands a sparse series into a dense one stepped by exactly
// the series period, from the first to the last observed timestamp.
// Steps with no exact-match input sample become invalid samples so that
// charts render a gap instead of a false zero. An empty input yields an
// empty output; no synthetic points are invented.
func FillGaps(s Series) Series {
	if s.Empty() || s.Period <= 0 {
		return s
	}
	byTime := make(map[int64]Sample, len(s.Samples))
	for _, sm := range s.Samples {
		byTime[sm.Time.Unix()] = sm
	}
	first := s.Samples[0].Time
	last := s.Samples[len(s.Samples)-1].Time

	out := Series{Period: s.Period}
	for cur := first; !cur.After(last); cur = cur.Add(s.Period) {
		if sm, ok := byTime[cur.Unix()]; ok {
			out.Samples = append(out.Samples, sm)
		} else {
			out.Samples = append(out.Samples, Missing(cur))
		}
	}
	return out
}

// AlignToPeriod floors t to the enclosing period boundary: the top of
// the hour for hourly-or-coarser periods, otherwise the nearest earlier
// multiple of whole minutes. Sub-minute components are always dropped.
func AlignToPeriod(t time.Time, period time.Duration) time.Time {
	t = t.Truncate(time.Minute)
	if period >= time.Hour {
		return t.Add(-time.Duration(t.Minute()) * time.Minute)
	}
	if period >= time.Minute {
		minutes := int(period / time.Minute)
		offset := t.Minute() % minutes
		return t.Add(-time.Duration(offset) * time.Minute)
	}
	return t
}
