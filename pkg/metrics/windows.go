package metrics

import "time"

// Window is one named lookback window computed backward from the run's
// reference end time.
type Window struct {
	Name     string
	Duration time.Duration
}

// Windows lists the supported lookback windows, shortest first.
var Windows = []Window{
	{Name: "1hour", Duration: time.Hour},
	{Name: "1day", Duration: 24 * time.Hour},
	{Name: "7days", Duration: 7 * 24 * time.Hour},
	{Name: "14days", Duration: 14 * 24 * time.Hour},
	{Name: "30days", Duration: 30 * 24 * time.Hour},
}

// WindowByName resolves a window name; ok is false for unknown names.
func WindowByName(name string) (Window, bool) {
	for _, w := range Windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// HasDailyTrend reports whether the window is long enough for a
// tokens-per-day series. A single day has no daily trend line.
func (w Window) HasDailyTrend() bool {
	return w.Duration > Windows[0].Duration
}
