package metrics

import (
	"time"

	"github.com/oddgeir/bedrockusage/pkg/cloudwatch"
	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// TokenPeriod is the finest CloudWatch granularity. Token counters are
// always fetched at this period so rate peaks are not averaged away.
const TokenPeriod = time.Minute

// ClassKind splits fetches into token counters (fixed 1-minute) and
// auxiliary counters (user-configured granularity).
type ClassKind int

const (
	ClassToken ClassKind = iota
	ClassAuxiliary
)

// FetchClass keys one raw dataset per profile. Token classes always
// carry TokenPeriod; auxiliary classes carry a configured period.
type FetchClass struct {
	Kind   ClassKind
	Period time.Duration
}

func TokenClass() FetchClass {
	return FetchClass{Kind: ClassToken, Period: TokenPeriod}
}

func AuxiliaryClass(period time.Duration) FetchClass {
	return FetchClass{Kind: ClassAuxiliary, Period: period}
}

func (c FetchClass) Counters() []cloudwatch.Counter {
	if c.Kind == ClassToken {
		return cloudwatch.TokenCounters
	}
	return cloudwatch.AuxiliaryCounters
}

// RawDataset is one fetched bundle: every counter of a fetch class
// re-expressed on a shared sorted timestamp axis, plus the sampling
// period and the reference end time the fetch was anchored to.
type RawDataset struct {
	Series map[string]timeseries.Series
	Period time.Duration
	End    time.Time
}

// EmptyDataset returns the canonical structurally-valid empty bundle
// stored when a fetch fails. Downstream stages treat it like any other
// dataset; it just produces no samples.
func EmptyDataset(class FetchClass, end time.Time) RawDataset {
	series := make(map[string]timeseries.Series)
	for _, counter := range class.Counters() {
		series[counter.ID] = timeseries.Series{Period: class.Period}
	}
	return RawDataset{Series: series, Period: class.Period, End: end}
}

// Store holds every (profile, fetch class) dataset for one analysis
// run. It is written once by the orchestrator's fan-in and read-only
// afterwards, so later stages need no locking.
type Store struct {
	End      time.Time
	datasets map[string]map[FetchClass]RawDataset
}

func NewStore(end time.Time) *Store {
	return &Store{End: end, datasets: make(map[string]map[FetchClass]RawDataset)}
}

func (s *Store) put(profileID string, class FetchClass, ds RawDataset) {
	byClass, ok := s.datasets[profileID]
	if !ok {
		byClass = make(map[FetchClass]RawDataset)
		s.datasets[profileID] = byClass
	}
	byClass[class] = ds
}

// Dataset returns the bundle for one (profile, fetch class) key.
func (s *Store) Dataset(profileID string, class FetchClass) (RawDataset, bool) {
	ds, ok := s.datasets[profileID][class]
	return ds, ok
}
