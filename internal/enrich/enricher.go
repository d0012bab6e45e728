// Package enrich augments archive records with the derived and aggregate
// fields the wire table references: rolling-window aggregates, calendar
// aggregates, hour-ago baselines and the growing-degree accumulator.
package enrich

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/archive"
	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/units"
	"github.com/smukkama/wns-uploader/internal/wire"
)

// Enricher resolves every derived field of the wire table against the
// archive. Fields already present in the incoming record take precedence
// over recomputation; a record carrying all of them causes no queries.
type Enricher struct {
	store archive.Reader
	table []wire.FieldSpec
	gts   *GTSState
	loc   *time.Location
	log   zerolog.Logger
}

// New creates an enricher over the given archive and resolved field
// table. loc is the host's local-time convention for calendar spans.
func New(store archive.Reader, table []wire.FieldSpec, gts *GTSState, loc *time.Location, log zerolog.Logger) *Enricher {
	if loc == nil {
		loc = time.Local
	}
	return &Enricher{store: store, table: table, gts: gts, loc: loc, log: log}
}

// hourDiffs are the 1-hour change fields computed from the nearest-hour
// baselines rather than from a window query.
var hourDiffs = []struct {
	current, baseline, diff string
}{
	{"outTemp", "outTemp1h", "outTempDiff1h"},
	{"barometer", "barometer1h", "barometerDiff1h"},
}

// Enrich returns an enriched MetricWX copy of r. Every archive query is
// individually guarded: a failing query is logged and its field stays
// absent, it never aborts the pass.
func (e *Enricher) Enrich(ctx context.Context, r *record.Record) *record.Record {
	rec := units.ConvertRecord(r)
	now := rec.Time
	sod := startOfDay(now, e.loc)

	e.hourAgoBaselines(ctx, rec, now)

	for _, d := range hourDiffs {
		if rec.Has(d.diff) || !rec.Has(d.current) || !rec.Has(d.baseline) {
			continue
		}
		rec.Set(d.diff, *rec.Get(d.current).Num-*rec.Get(d.baseline).Num)
	}

	skip := map[string]bool{}
	for _, d := range hourDiffs {
		skip[d.diff] = true
	}

	for _, fs := range e.table {
		k := fs.Key
		if !k.Derived() {
			continue
		}
		name := k.Name()
		if skip[name] || rec.Has(name) {
			continue
		}
		start, end, ok := e.windowSpan(k.Window, now, sod)
		if !ok {
			continue
		}
		v, err := e.store.AggregateRange(ctx, k.Observation, start, end, k.Operator)
		if err != nil {
			e.log.Warn().Str("field", name).Err(err).Msg("aggregate query failed")
			continue
		}
		if v != nil {
			rec.Set(name, *v)
		}
	}

	e.growingDegreeSum(ctx, rec, now)
	e.radiationEnergy(ctx, rec, now, sod)

	return rec
}

// hourAgoBaselines finds the record nearest to one hour ago and copies
// its temperature and pressure as baselines. Preference is a record in
// [-3600s, -3300s]; the fallback takes the nearest in [-3900s, -3600s].
// The asymmetric bounds are part of the upload contract and are kept
// as-is. Absence of a candidate is not an error.
func (e *Enricher) hourAgoBaselines(ctx context.Context, rec *record.Record, now time.Time) {
	need := false
	for _, d := range hourDiffs {
		if !rec.Has(d.baseline) {
			need = true
		}
	}
	if !need {
		return
	}

	ago1, err := e.store.FirstTimestamp(ctx, now.Add(-3600*time.Second), now.Add(-3300*time.Second))
	if err != nil {
		e.log.Warn().Err(err).Msg("hour-ago lookup failed")
		return
	}
	if ago1 == nil {
		ago1, err = e.store.LastTimestamp(ctx, now.Add(-3900*time.Second), now.Add(-3600*time.Second))
		if err != nil {
			e.log.Warn().Err(err).Msg("hour-ago fallback lookup failed")
			return
		}
	}
	if ago1 == nil {
		return
	}

	for _, d := range hourDiffs {
		if rec.Has(d.baseline) {
			continue
		}
		v, err := e.store.ValueAt(ctx, d.current, *ago1)
		if err != nil {
			e.log.Warn().Str("field", d.baseline).Err(err).Msg("baseline lookup failed")
			continue
		}
		if v != nil {
			rec.Set(d.baseline, *v)
		}
	}
}

// windowSpan maps a named window to a concrete half-open interval. Day
// windows are only valid once now is strictly past the start of day; the
// guard avoids a spurious whole-day aggregate exactly at midnight.
func (e *Enricher) windowSpan(w record.Window, now, sod time.Time) (time.Time, time.Time, bool) {
	switch w {
	case record.Window10m:
		return now.Add(-10 * time.Minute), now, true
	case record.Window1h:
		return now.Add(-1 * time.Hour), now, true
	case record.Window3h:
		return now.Add(-3 * time.Hour), now, true
	case record.Window24h:
		return now.Add(-24 * time.Hour), now, true
	case record.WindowDay:
		if !sod.Before(now) {
			return time.Time{}, time.Time{}, false
		}
		return sod, now, true
	case record.WindowYesterday:
		start, end := yesterdaySpan(now, e.loc)
		return start, end, true
	case record.WindowMonth:
		return startOfMonth(now, e.loc), now, true
	case record.WindowYear:
		return startOfYear(now, e.loc), now, true
	}
	return time.Time{}, time.Time{}, false
}

func (e *Enricher) growingDegreeSum(ctx context.Context, rec *record.Record, now time.Time) {
	if e.gts == nil || rec.Has(wire.ObsGTSSum) {
		return
	}
	e.gts.Update(ctx, e.store, now, e.loc, e.log)
	if !e.gts.Resolved {
		return
	}
	rec.Set(wire.ObsGTSSum, e.gts.Sum)
	if e.gts.CrossingDay != nil {
		rec.SetDate(wire.ObsGTSDate, *e.gts.CrossingDay)
	}
}

func (e *Enricher) radiationEnergy(ctx context.Context, rec *record.Record, now, sod time.Time) {
	if rec.Has(wire.ObsRadiationEnergyDay) || !sod.Before(now) {
		return
	}
	v, err := e.store.RadiationEnergy(ctx, sod, now)
	if err != nil {
		e.log.Warn().Err(err).Msg("radiation energy integral failed")
		return
	}
	if v != nil {
		rec.Set(wire.ObsRadiationEnergyDay, *v)
	}
}
