package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddgeir/bedrockusage/pkg/cloudwatch"
	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// fakeAPI serves canned samples per (profile, counter) and can fail
// selected profiles.
type fakeAPI struct {
	mu    sync.Mutex
	calls int
	data  map[string]map[string][]timeseries.Sample
	fail  map[string]bool
}

func (f *fakeAPI) GetMetricData(ctx context.Context, queries []cloudwatch.Query, start, end time.Time) (map[string][]timeseries.Sample, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if len(queries) == 0 {
		return nil, errors.New("no queries")
	}
	profileID := queries[0].ModelID
	if f.fail[profileID] {
		return nil, errors.New("throttled by upstream")
	}

	out := make(map[string][]timeseries.Sample)
	for _, q := range queries {
		for _, sm := range f.data[profileID][q.ID] {
			if !sm.Time.Before(start) && sm.Time.Before(end) {
				out[q.ID] = append(out[q.ID], sm)
			}
		}
	}
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFetchAllStoresTokenAndAuxiliaryDatasets(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 30, 0, time.UTC)
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{data: map[string]map[string][]timeseries.Sample{
		"profile-a": {
			"invocations":  {timeseries.Observed(end.Add(-10*time.Minute), 4)},
			"input_tokens": {timeseries.Observed(end.Add(-10*time.Minute), 100)},
			"throttles":    {timeseries.Observed(end.Add(-30*time.Minute), 1)},
		},
	}}

	o := NewOrchestrator(api, 4)
	o.SetClock(fixedClock(now))
	store, err := o.FetchAll(context.Background(), []string{"profile-a"}, map[string]time.Duration{
		"1hour": 5 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, end, store.End)

	token, ok := store.Dataset("profile-a", TokenClass())
	require.True(t, ok)
	assert.Equal(t, TokenPeriod, token.Period)
	assert.Len(t, token.Series["invocations"].Samples, 1)

	aux, ok := store.Dataset("profile-a", AuxiliaryClass(5*time.Minute))
	require.True(t, ok)
	assert.Len(t, aux.Series["throttles"].Samples, 1)
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		data: map[string]map[string][]timeseries.Sample{
			"good": {"invocations": {timeseries.Observed(end.Add(-5*time.Minute), 1)}},
		},
		fail: map[string]bool{"bad": true},
	}

	o := NewOrchestrator(api, 2)
	o.SetClock(fixedClock(end))
	store, err := o.FetchAll(context.Background(), []string{"good", "bad"}, map[string]time.Duration{
		"1hour": time.Minute,
	})
	require.NoError(t, err)

	good, ok := store.Dataset("good", TokenClass())
	require.True(t, ok)
	assert.NotEmpty(t, good.Series["invocations"].Samples)

	// The failing profile still gets a structurally valid empty bundle.
	bad, ok := store.Dataset("bad", TokenClass())
	require.True(t, ok)
	assert.Equal(t, EmptyDataset(TokenClass(), end), bad)
	badAux, ok := store.Dataset("bad", AuxiliaryClass(time.Minute))
	require.True(t, ok)
	assert.Empty(t, badAux.Series["throttles"].Samples)
}

func TestBuildTasksDeduplicatesSharedPeriods(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tasks, err := buildTasks(end, map[string]time.Duration{
		"1hour": 5 * time.Minute,
		"1day":  5 * time.Minute,
		"7days": time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, TokenClass(), tasks[0].class)
	assert.Equal(t, end.Add(-7*24*time.Hour), tasks[0].start, "token task spans the longest window")

	assert.Equal(t, AuxiliaryClass(5*time.Minute), tasks[1].class)
	assert.Equal(t, end.Add(-24*time.Hour), tasks[1].start, "shared period spans its longest window")

	assert.Equal(t, AuxiliaryClass(time.Hour), tasks[2].class)
	assert.Equal(t, end.Add(-7*24*time.Hour), tasks[2].start)
}

func TestBuildTasksRejectsUnknownWindow(t *testing.T) {
	_, err := buildTasks(time.Now(), map[string]time.Duration{"2weeks": time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2weeks")
}

func TestFetchDatasetRealignsCountersOnSharedAxis(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	t0 := end.Add(-3 * time.Minute)
	t1 := end.Add(-2 * time.Minute)
	api := &fakeAPI{data: map[string]map[string][]timeseries.Sample{
		"p": {
			"invocations":   {timeseries.Observed(t1, 2), timeseries.Observed(t0, 1)},
			"input_tokens":  {timeseries.Observed(t0, 50)},
			"output_tokens": {timeseries.Observed(t1, 70)},
		},
	}}

	ds, err := fetchDataset(context.Background(), api, "p", TokenClass(), end.Add(-time.Hour), end, NewProgress(1))
	require.NoError(t, err)

	// Every counter sits on the sorted union axis {t0, t1}.
	for _, id := range []string{"invocations", "input_tokens", "output_tokens"} {
		require.Len(t, ds.Series[id].Samples, 2, id)
		assert.Equal(t, t0, ds.Series[id].Samples[0].Time)
		assert.Equal(t, t1, ds.Series[id].Samples[1].Time)
	}
	assert.True(t, ds.Series["invocations"].Samples[0].Valid)
	assert.True(t, ds.Series["input_tokens"].Samples[0].Valid)
	assert.False(t, ds.Series["input_tokens"].Samples[1].Valid, "hole becomes an explicit gap")
	assert.False(t, ds.Series["output_tokens"].Samples[0].Valid)
}

func TestProgressCountsChunks(t *testing.T) {
	p := NewProgress(4)
	done, pct := p.Inc()
	assert.Equal(t, int64(1), done)
	assert.Equal(t, 25, pct)
	p.Inc()
	p.Inc()
	done, pct = p.Inc()
	assert.Equal(t, int64(4), done)
	assert.Equal(t, 100, pct)
}
