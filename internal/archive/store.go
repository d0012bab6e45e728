// Package archive reads the host engine's archive database: time-ordered
// observation records, queryable by range with aggregate operators.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/units"
)

// Reader is the query surface the enrichment pass consumes. A missing
// value is (nil, nil); only operational failures return an error.
type Reader interface {
	// AggregateRange evaluates op over the half-open span (start, end].
	AggregateRange(ctx context.Context, obs string, start, end time.Time, op record.Operator) (*float64, error)
	// FirstTimestamp returns the earliest record timestamp in [start, end].
	FirstTimestamp(ctx context.Context, start, end time.Time) (*time.Time, error)
	// LastTimestamp returns the latest record timestamp in [start, end].
	LastTimestamp(ctx context.Context, start, end time.Time) (*time.Time, error)
	// ValueAt returns the observation stored exactly at ts.
	ValueAt(ctx context.Context, obs string, ts time.Time) (*float64, error)
	// RadiationEnergy integrates radiation power over (start, end] into
	// Watt-hours using each record's own sampling interval.
	RadiationEnergy(ctx context.Context, start, end time.Time) (*float64, error)
}

// DB is a Reader backed by the archive table in Postgres. Values are
// converted to MetricWX on the way out using the table's unit system.
type DB struct {
	*sql.DB
	table string
	units record.System
}

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Connect opens the archive database and detects its unit system from the
// most recent record.
func Connect(connectionString, table string) (*DB, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid archive table name %q", table)
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	a := &DB{DB: db, table: table, units: record.MetricWX}

	var us sql.NullInt64
	err = db.QueryRow(fmt.Sprintf(
		`SELECT "usUnits" FROM %s ORDER BY "dateTime" DESC LIMIT 1`, table)).Scan(&us)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read archive unit system: %w", err)
	}
	if us.Valid && record.System(us.Int64).Known() {
		a.units = record.System(us.Int64)
	}

	return a, nil
}

// column validates an observation name before it is spliced into SQL.
// Only registered observations with identifier-shaped names pass.
func (a *DB) column(obs string) (string, error) {
	if !identPattern.MatchString(obs) || !units.KnownObservation(obs) {
		return "", fmt.Errorf("unknown archive observation %q", obs)
	}
	return fmt.Sprintf("%q", obs), nil
}

func (a *DB) AggregateRange(ctx context.Context, obs string, start, end time.Time, op record.Operator) (*float64, error) {
	col, err := a.column(obs)
	if err != nil {
		return nil, err
	}

	if op == record.OpDiff {
		return a.diffRange(ctx, obs, col, start, end)
	}

	var agg string
	switch op {
	case record.OpMin:
		agg = "MIN"
	case record.OpMax:
		agg = "MAX"
	case record.OpSum:
		agg = "SUM"
	case record.OpAvg:
		agg = "AVG"
	default:
		return nil, fmt.Errorf("unsupported aggregate operator %q", op)
	}

	query := fmt.Sprintf(
		`SELECT %s(%s) FROM %s WHERE "dateTime" > $1 AND "dateTime" <= $2`,
		agg, col, a.table)

	var v sql.NullFloat64
	if err := a.QueryRowContext(ctx, query, start.Unix(), end.Unix()).Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("aggregate %s(%s) failed: %w", op, obs, err)
	}
	if !v.Valid {
		return nil, nil
	}
	out := units.ToMetricWX(v.Float64, units.GroupFor(obs), a.units)
	return &out, nil
}

// diffRange is value-at-window-end minus value-at-window-start. Both ends
// are converted to MetricWX before the subtraction.
func (a *DB) diffRange(ctx context.Context, obs, col string, start, end time.Time) (*float64, error) {
	first, err := a.edgeValue(ctx, obs, col, start, end, "ASC")
	if err != nil || first == nil {
		return nil, err
	}
	last, err := a.edgeValue(ctx, obs, col, start, end, "DESC")
	if err != nil || last == nil {
		return nil, err
	}
	out := *last - *first
	return &out, nil
}

func (a *DB) edgeValue(ctx context.Context, obs, col string, start, end time.Time, order string) (*float64, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE "dateTime" > $1 AND "dateTime" <= $2 AND %s IS NOT NULL ORDER BY "dateTime" %s LIMIT 1`,
		col, a.table, col, order)

	var v sql.NullFloat64
	err := a.QueryRowContext(ctx, query, start.Unix(), end.Unix()).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("edge value of %s failed: %w", obs, err)
	}
	if !v.Valid {
		return nil, nil
	}
	out := units.ToMetricWX(v.Float64, units.GroupFor(obs), a.units)
	return &out, nil
}

func (a *DB) FirstTimestamp(ctx context.Context, start, end time.Time) (*time.Time, error) {
	return a.boundTimestamp(ctx, "MIN", start, end)
}

func (a *DB) LastTimestamp(ctx context.Context, start, end time.Time) (*time.Time, error) {
	return a.boundTimestamp(ctx, "MAX", start, end)
}

func (a *DB) boundTimestamp(ctx context.Context, agg string, start, end time.Time) (*time.Time, error) {
	query := fmt.Sprintf(
		`SELECT %s("dateTime") FROM %s WHERE "dateTime" >= $1 AND "dateTime" <= $2`,
		agg, a.table)

	var ts sql.NullInt64
	if err := a.QueryRowContext(ctx, query, start.Unix(), end.Unix()).Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("timestamp bound query failed: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	out := time.Unix(ts.Int64, 0)
	return &out, nil
}

func (a *DB) ValueAt(ctx context.Context, obs string, ts time.Time) (*float64, error) {
	col, err := a.column(obs)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE "dateTime" = $1`, col, a.table)

	var v sql.NullFloat64
	err = a.QueryRowContext(ctx, query, ts.Unix()).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("point lookup of %s failed: %w", obs, err)
	}
	if !v.Valid {
		return nil, nil
	}
	out := units.ToMetricWX(v.Float64, units.GroupFor(obs), a.units)
	return &out, nil
}

func (a *DB) RadiationEnergy(ctx context.Context, start, end time.Time) (*float64, error) {
	query := fmt.Sprintf(
		`SELECT radiation, "interval", "usUnits" FROM %s WHERE "dateTime" > $1 AND "dateTime" <= $2 AND radiation IS NOT NULL`,
		a.table)

	rows, err := a.QueryContext(ctx, query, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("radiation energy query failed: %w", err)
	}
	defer rows.Close()

	var (
		sum     float64
		seen    bool
		sysSeen int64 = -1
	)
	for rows.Next() {
		var radiation, interval float64
		var us int64
		if err := rows.Scan(&radiation, &interval, &us); err != nil {
			return nil, fmt.Errorf("radiation energy scan failed: %w", err)
		}
		if sysSeen >= 0 && us != sysSeen {
			return nil, fmt.Errorf("inconsistent unit systems in radiation span (%d vs %d)", sysSeen, us)
		}
		sysSeen = us
		// power (W) times sampling interval (min) over 60 gives Wh
		sum += radiation * interval / 60.0
		seen = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("radiation energy rows failed: %w", err)
	}
	if !seen {
		return nil, nil
	}
	return &sum, nil
}
