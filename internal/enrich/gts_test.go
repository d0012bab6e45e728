package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/record"
)

// fakeArchive is a programmable Reader. Day-long average queries are
// answered from dayMeans keyed by the day's date; everything else goes
// through aggFn when set.
type fakeArchive struct {
	queries        int
	radiationCalls int
	spans          []span

	dayMeans  map[string]float64
	aggFn     func(obs string, start, end time.Time, op record.Operator) (*float64, error)
	first     *time.Time
	last      *time.Time
	values    map[string]float64
	radiation *float64
}

type span struct {
	obs        string
	start, end time.Time
	op         record.Operator
}

func (f *fakeArchive) AggregateRange(_ context.Context, obs string, start, end time.Time, op record.Operator) (*float64, error) {
	f.queries++
	f.spans = append(f.spans, span{obs, start, end, op})
	if op == record.OpAvg && end.Sub(start) == 24*time.Hour && f.dayMeans != nil {
		if v, ok := f.dayMeans[start.Format("2006-01-02")]; ok {
			out := v
			return &out, nil
		}
		return nil, nil
	}
	if f.aggFn != nil {
		return f.aggFn(obs, start, end, op)
	}
	return nil, nil
}

func (f *fakeArchive) FirstTimestamp(_ context.Context, start, end time.Time) (*time.Time, error) {
	f.queries++
	if f.first != nil && !f.first.Before(start) && !f.first.After(end) {
		return f.first, nil
	}
	return nil, nil
}

func (f *fakeArchive) LastTimestamp(_ context.Context, start, end time.Time) (*time.Time, error) {
	f.queries++
	if f.last != nil && !f.last.Before(start) && !f.last.After(end) {
		return f.last, nil
	}
	return nil, nil
}

func (f *fakeArchive) ValueAt(_ context.Context, obs string, _ time.Time) (*float64, error) {
	f.queries++
	if v, ok := f.values[obs]; ok {
		out := v
		return &out, nil
	}
	return nil, nil
}

func (f *fakeArchive) RadiationEnergy(_ context.Context, _, _ time.Time) (*float64, error) {
	f.queries++
	f.radiationCalls++
	return f.radiation, nil
}

func fillMeans(m map[string]float64, from, to time.Time, mean float64) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		m[d.Format("2006-01-02")] = mean
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGTSSeasonalWeights(t *testing.T) {
	means := make(map[string]float64)
	fillMeans(means, day(2023, 1, 1), day(2023, 3, 2), 10.0)
	store := &fakeArchive{dayMeans: means}

	g := NewGTSState()
	g.Update(context.Background(), store, day(2023, 3, 3).Add(12*time.Hour), time.UTC, zerolog.Nop())

	// 31 January days at half weight, 28 February days at three quarters,
	// 2 March days at full weight
	want := 31*0.5*10 + 28*0.75*10 + 2*1.0*10
	if g.Sum != want {
		t.Errorf("sum = %v, want %v", g.Sum, want)
	}
	if !g.Resolved {
		t.Error("accumulator should be resolved")
	}
	// the cumulative sum reaches 200 on February 6
	if g.CrossingDay == nil || !g.CrossingDay.Equal(day(2023, 2, 6)) {
		t.Errorf("crossing day = %v", g.CrossingDay)
	}
}

func TestGTSYearReset(t *testing.T) {
	means := make(map[string]float64)
	fillMeans(means, day(2023, 1, 1), day(2023, 1, 5), 20.0)
	store := &fakeArchive{dayMeans: means}

	g := NewGTSState()
	g.Update(context.Background(), store, day(2022, 12, 15).Add(8*time.Hour), time.UTC, zerolog.Nop())
	g.Sum = 999 // stale carry-over from the old year

	g.Update(context.Background(), store, day(2023, 1, 6).Add(8*time.Hour), time.UTC, zerolog.Nop())

	// 5 January days at half weight, the old-year sum discarded
	if want := 5 * 0.5 * 20.0; g.Sum != want {
		t.Errorf("sum = %v, want %v", g.Sum, want)
	}
	if !g.LastDay.Equal(day(2023, 1, 6)) {
		t.Errorf("last day = %v", g.LastDay)
	}
}

func TestGTSCatchUpEquivalence(t *testing.T) {
	means := make(map[string]float64)
	for i := 1; i <= 19; i++ {
		means[day(2023, 3, i).Format("2006-01-02")] = float64(i)
	}
	daily := &fakeArchive{dayMeans: means}
	replay := &fakeArchive{dayMeans: means}

	a := NewGTSState()
	for i := 2; i <= 20; i++ {
		a.Update(context.Background(), daily, day(2023, 3, i).Add(6*time.Hour), time.UTC, zerolog.Nop())
	}

	b := NewGTSState()
	b.Update(context.Background(), replay, day(2023, 3, 20).Add(6*time.Hour), time.UTC, zerolog.Nop())

	if a.Sum != b.Sum {
		t.Errorf("daily sum %v != replay sum %v", a.Sum, b.Sum)
	}
	if !a.LastDay.Equal(b.LastDay) {
		t.Errorf("daily last day %v != replay last day %v", a.LastDay, b.LastDay)
	}
	if (a.CrossingDay == nil) != (b.CrossingDay == nil) {
		t.Errorf("crossing mismatch: %v vs %v", a.CrossingDay, b.CrossingDay)
	}
}

func TestGTSStopsAtCutoff(t *testing.T) {
	means := make(map[string]float64)
	fillMeans(means, day(2023, 5, 25), day(2023, 6, 10), 10.0)
	store := &fakeArchive{dayMeans: means}

	g := NewGTSState()
	g.Update(context.Background(), store, day(2023, 6, 11).Add(9*time.Hour), time.UTC, zerolog.Nop())

	// only the seven May days count; June is past the cutoff
	if want := 7 * 10.0; g.Sum != want {
		t.Errorf("sum = %v, want %v", g.Sum, want)
	}
	if !g.LastDay.Equal(day(2023, 6, 11)) {
		t.Errorf("last day = %v, the accumulator must keep advancing", g.LastDay)
	}
}

func TestGTSMissingDaysSkippedOnce(t *testing.T) {
	store := &fakeArchive{dayMeans: map[string]float64{
		day(2023, 1, 2).Format("2006-01-02"): 10.0,
	}}

	g := NewGTSState()
	now := day(2023, 1, 5).Add(10 * time.Hour)
	g.Update(context.Background(), store, now, time.UTC, zerolog.Nop())

	if want := 0.5 * 10.0; g.Sum != want {
		t.Errorf("sum = %v, want %v", g.Sum, want)
	}
	if store.queries != 4 {
		t.Errorf("expected one query per day, got %d", store.queries)
	}

	// days without data are never retried
	g.Update(context.Background(), store, now, time.UTC, zerolog.Nop())
	if store.queries != 4 {
		t.Errorf("re-update issued %d extra queries", store.queries-4)
	}
}

func TestGTSNegativeMeansIgnored(t *testing.T) {
	store := &fakeArchive{dayMeans: map[string]float64{
		day(2023, 1, 2).Format("2006-01-02"): -5.0,
	}}

	g := NewGTSState()
	g.Update(context.Background(), store, day(2023, 1, 5).Add(10*time.Hour), time.UTC, zerolog.Nop())

	if g.Sum != 0 {
		t.Errorf("sum = %v, negative means must not contribute", g.Sum)
	}
	// a resolved-but-negative day still marks the accumulator live
	if !g.Resolved {
		t.Error("accumulator should be resolved")
	}
}

func TestGTSUnresolvedOnEmptyArchive(t *testing.T) {
	store := &fakeArchive{}

	g := NewGTSState()
	g.Update(context.Background(), store, day(2023, 2, 10).Add(10*time.Hour), time.UTC, zerolog.Nop())

	if g.Resolved {
		t.Error("accumulator must stay unresolved without any daily mean")
	}
	if g.CrossingDay != nil {
		t.Errorf("crossing day = %v", g.CrossingDay)
	}
}
