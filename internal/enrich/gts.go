package enrich

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/archive"
	"github.com/smukkama/wns-uploader/internal/record"
)

// GTS parameters: weighted growing-degree sum of positive daily mean
// temperatures, reset each calendar year, accumulated until the cutoff.
// January days count half, February days three quarters.
const (
	gtsThreshold   = 200.0
	gtsCutoffMonth = time.June
)

// GTSState is the growing-degree accumulator. It is owned by the delivery
// worker, constructed once at startup and passed by reference into each
// enrichment call. It is not persisted: after a restart the replay loop
// rebuilds it from the archive, bounded by the start of the current year.
type GTSState struct {
	LastDay     time.Time // first day not yet processed, local midnight
	Sum         float64
	CrossingDay *time.Time // first day the sum reached the threshold
	Resolved    bool       // at least one daily mean was available this year

	initialized bool
}

// NewGTSState returns an uninitialized accumulator; the first Update
// performs the catch-up replay.
func NewGTSState() *GTSState {
	return &GTSState{}
}

func gtsWeight(day time.Time) float64 {
	switch day.Month() {
	case time.January:
		return 0.5
	case time.February:
		return 0.75
	default:
		return 1.0
	}
}

// Update advances the accumulator to the day containing now. Every day
// between the last processed day and today contributes at most once; a
// day with missing or unreadable data is skipped, never retried, which
// keeps the replay loop convergent after arbitrarily long downtime.
func (g *GTSState) Update(ctx context.Context, store archive.Reader, now time.Time, loc *time.Location, log zerolog.Logger) {
	today := startOfDay(now, loc)
	yearStart := startOfYear(now, loc)
	cutoff := time.Date(now.In(loc).Year(), gtsCutoffMonth, 1, 0, 0, 0, 0, loc)

	if !g.initialized || g.LastDay.Before(yearStart) {
		log.Info().Time("from", yearStart).Msg("re-initializing growing-degree sum")
		g.Sum = 0
		g.CrossingDay = nil
		g.Resolved = false
		g.LastDay = yearStart
		g.initialized = true
	}

	for day := g.LastDay; day.Before(today); day = day.AddDate(0, 0, 1) {
		if !day.Before(cutoff) {
			continue
		}
		mean, err := store.AggregateRange(ctx, "outTemp", day, day.AddDate(0, 0, 1), record.OpAvg)
		if err != nil {
			log.Warn().Time("day", day).Err(err).Msg("no daily mean for growing-degree sum, skipping day")
			continue
		}
		if mean == nil {
			continue
		}
		g.Resolved = true
		if *mean <= 0 {
			continue
		}
		g.Sum += gtsWeight(day) * *mean
		if g.CrossingDay == nil && g.Sum >= gtsThreshold {
			d := day
			g.CrossingDay = &d
		}
	}

	// advance unconditionally, whether or not any day resolved
	g.LastDay = today
}
