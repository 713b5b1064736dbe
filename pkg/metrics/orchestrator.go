package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// Orchestrator fans raw fetches out across all (profile, fetch class)
// pairs with bounded parallelism and merges the results into a Store.
// A failed pair degrades to an empty dataset; it never aborts siblings
// and never fails the run.
type Orchestrator struct {
	api     API
	workers int
	now     func() time.Time
}

func NewOrchestrator(api API, workers int) *Orchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{api: api, workers: workers, now: time.Now}
}

// SetClock overrides the reference-time source, used in tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

type fetchTask struct {
	class FetchClass
	start time.Time
}

type fetchResult struct {
	profileID string
	class     FetchClass
	dataset   RawDataset
}

// FetchAll fetches every profile's datasets for the windows named in
// granularity (window name -> configured auxiliary period). One token
// task at 1-minute granularity spans the longest requested window;
// auxiliary tasks are deduplicated per distinct period so shared
// (period, duration) work is fetched once. The reference end time is
// aligned to the minute and shared by every dataset in the run.
func (o *Orchestrator) FetchAll(ctx context.Context, profileIDs []string, granularity map[string]time.Duration) (*Store, error) {
	end := timeseries.AlignToPeriod(o.now().UTC(), TokenPeriod)

	tasks, err := buildTasks(end, granularity)
	if err != nil {
		return nil, err
	}

	totalChunks := 0
	for _, task := range tasks {
		chunks := timeseries.ChunkRange(task.start, end, task.class.Period, timeseries.MaxSamplesPerRequest)
		totalChunks += len(chunks) * len(profileIDs)
	}
	progress := NewProgress(totalChunks)
	log.Info("starting metrics fetch", "profiles", len(profileIDs), "tasks_per_profile", len(tasks), "chunks", totalChunks, "workers", o.workers)

	results := make(chan fetchResult)
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for _, profileID := range profileIDs {
		for _, task := range tasks {
			wg.Add(1)
			go func(profileID string, task fetchTask) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				ds, err := fetchDataset(ctx, o.api, profileID, task.class, task.start, end, progress)
				if err != nil {
					log.Warn("fetch failed, continuing with empty dataset",
						"profile", profileID, "period", task.class.Period, "error", err)
				}
				results <- fetchResult{profileID: profileID, class: task.class, dataset: ds}
			}(profileID, task)
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Fan-in: each key is written exactly once, by this loop only.
	store := NewStore(end)
	for r := range results {
		store.put(r.profileID, r.class, r.dataset)
	}
	log.Info("metrics fetch complete", "chunks", totalChunks)
	return store, nil
}

func buildTasks(end time.Time, granularity map[string]time.Duration) ([]fetchTask, error) {
	var maxDur time.Duration
	spanByPeriod := make(map[time.Duration]time.Duration)
	for name, period := range granularity {
		window, ok := WindowByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown lookback window %q", name)
		}
		if window.Duration > maxDur {
			maxDur = window.Duration
		}
		if window.Duration > spanByPeriod[period] {
			spanByPeriod[period] = window.Duration
		}
	}
	if maxDur == 0 {
		return nil, fmt.Errorf("no lookback windows configured")
	}

	tasks := []fetchTask{{class: TokenClass(), start: end.Add(-maxDur)}}

	periods := make([]time.Duration, 0, len(spanByPeriod))
	for period := range spanByPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	for _, period := range periods {
		tasks = append(tasks, fetchTask{
			class: AuxiliaryClass(period),
			start: end.Add(-spanByPeriod[period]),
		})
	}
	return tasks, nil
}
