package metrics

import "sync/atomic"

// Progress tracks chunk completion across all concurrent fetch tasks.
// It is the only state shared between tasks and is purely
// observability; correctness never depends on it.
type Progress struct {
	total     int64
	completed atomic.Int64
}

func NewProgress(total int) *Progress {
	return &Progress{total: int64(total)}
}

// Inc records one completed chunk and returns the completed count and
// overall percentage.
func (p *Progress) Inc() (completed int64, percent int) {
	completed = p.completed.Add(1)
	if p.total > 0 {
		percent = int(completed * 100 / p.total)
	}
	return completed, percent
}

func (p *Progress) Total() int64 { return p.total }
