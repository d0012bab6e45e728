package record

// Window names an aggregation time span.
type Window string

const (
	WindowNone      Window = ""
	Window10m       Window = "10m"
	Window1h        Window = "1h"
	Window3h        Window = "3h"
	Window24h       Window = "24h"
	WindowDay       Window = "day"
	WindowYesterday Window = "yesterday"
	WindowMonth     Window = "month"
	WindowYear      Window = "year"
)

// Operator names an aggregation operator.
type Operator string

const (
	OpNone Operator = ""
	OpMin  Operator = "min"
	OpMax  Operator = "max"
	OpSum  Operator = "sum"
	OpAvg  Operator = "avg"
	OpDiff Operator = "diff"
)

// Key identifies a derived field: an observation combined with an
// aggregation window and operator. The zero window/operator means the
// plain observation.
type Key struct {
	Observation string
	Window      Window
	Operator    Operator
}

// Plain builds a key for a bare observation.
func Plain(obs string) Key {
	return Key{Observation: obs}
}

// windowSuffixes and opSuffixes carry the exact capitalization the
// derived-field names use. They are data, not formatting logic.
var windowSuffixes = map[Window]string{
	Window10m:       "10m",
	Window1h:        "1h",
	Window3h:        "3h",
	Window24h:       "24h",
	WindowDay:       "Day",
	WindowYesterday: "Yesterday",
	WindowMonth:     "Month",
	WindowYear:      "Year",
}

var opSuffixes = map[Operator]string{
	OpMin: "Min",
	OpMax: "Max",
	OpSum: "Sum",
	OpAvg: "Avg",
}

// irregularNames covers the handful of derived fields whose names predate
// the suffix scheme and are supplied directly by the host engine.
var irregularNames = map[Key]string{
	{Observation: "rain", Window: Window1h, Operator: OpSum}:  "hourRain",
	{Observation: "rain", Window: Window24h, Operator: OpSum}: "rain24",
	{Observation: "rain", Window: WindowDay, Operator: OpSum}: "dayRain",
}

// Name returns the record field name the key resolves to. Diff keys put
// the operator before the window (outTempDiff1h); all other keys append
// window then operator (windchillDayMin, windSpeed1hMax).
func (k Key) Name() string {
	if k.Observation == "" {
		return ""
	}
	if n, ok := irregularNames[k]; ok {
		return n
	}
	if k.Operator == OpDiff {
		return k.Observation + "Diff" + windowSuffixes[k.Window]
	}
	return k.Observation + windowSuffixes[k.Window] + opSuffixes[k.Operator]
}

// Derived reports whether the key names an aggregate (window and operator
// both set, or a diff).
func (k Key) Derived() bool {
	return k.Window != WindowNone && k.Operator != OpNone
}
