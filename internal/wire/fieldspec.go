// Package wire declares the WNS positional field table and serializes
// enriched records into the semicolon-delimited upload payload.
package wire

import (
	"regexp"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/units"
)

// Kind selects the formatting rule of a wire field.
type Kind int

const (
	KindNumber   Kind = iota
	KindDate          // DD.MM.YYYY
	KindDuration      // minutes rendered as H:MM
)

// Sunshine selects the special-case conversion for sunshine-duration
// fields, whose archive values are seconds.
type Sunshine int

const (
	SunNone    Sunshine = iota
	SunMinutes          // hourly field: minutes, sanity-clamped
	SunHMM              // day field: minutes, split into H:MM
	SunHours            // month/year fields: decimal hours
)

// FieldSpec maps one output column to its source observation, aggregation
// and formatting rule. The declaration order of the table below is the
// wire column order and must never change.
type FieldSpec struct {
	WireKey  string
	Key      record.Key
	Kind     Kind
	Decimals int
	Factor   float64
	Sunshine Sunshine
}

func num(wireKey string, key record.Key, decimals int) FieldSpec {
	return FieldSpec{WireKey: wireKey, Key: key, Kind: KindNumber, Decimals: decimals, Factor: 1.0}
}

func kmh(wireKey string, key record.Key) FieldSpec {
	// wind speeds leave the pipeline in m/s and go out in km/h
	return FieldSpec{WireKey: wireKey, Key: key, Kind: KindNumber, Decimals: 1, Factor: 3.6}
}

func date(wireKey string, key record.Key) FieldSpec {
	return FieldSpec{WireKey: wireKey, Key: key, Kind: KindDate, Factor: 1.0}
}

func unmapped(wireKey string) FieldSpec {
	return FieldSpec{WireKey: wireKey, Kind: KindNumber, Decimals: 1, Factor: 1.0}
}

func key(obs string, w record.Window, op record.Operator) record.Key {
	return record.Key{Observation: obs, Window: w, Operator: op}
}

// Observation names the enricher owns outright.
const (
	ObsGTSSum             = "GTS"
	ObsGTSDate            = "GTSdate"
	ObsRadiationEnergyDay = "radiationEnergyDay"
)

// DefaultTable returns the WNS field table in wire order. Entries with an
// empty observation always serialize as the placeholder unless an
// override binds them to a sensor channel.
func DefaultTable() []FieldSpec {
	return []FieldSpec{
		num("T2AKT_", record.Plain("outTemp"), 1),
		num("T2MIN_", key("outTemp", record.WindowDay, record.OpMin), 1),
		num("T2MAX_", key("outTemp", record.WindowDay, record.OpMax), 1),
		num("T2D1H_", key("outTemp", record.Window1h, record.OpDiff), 1),
		unmapped("T5AKT_"),
		unmapped("T5MIN_"),
		num("LFAKT_", record.Plain("outHumidity"), 0),
		unmapped("RRD05_"),
		num("RRD10_", key("rain", record.Window10m, record.OpSum), 1),
		num("RRD1H_", key("rain", record.Window1h, record.OpSum), 1),
		num("RRD3H_", key("rain", record.Window3h, record.OpSum), 1),
		num("RRD24H", key("rain", record.Window24h, record.OpSum), 1),
		num("RRD1D_", key("rain", record.WindowDay, record.OpSum), 1),
		kmh("WSAKT_", record.Plain("windSpeed")),
		num("WRAKT_", record.Plain("windDir"), 0),
		kmh("WBAKT_", record.Plain("windGust")),
		kmh("WSM10_", key("windSpeed", record.Window10m, record.OpAvg)),
		num("WRM10_", key("windDir", record.Window10m, record.OpAvg), 0),
		kmh("WSMX1H", key("windSpeed", record.Window1h, record.OpMax)),
		kmh("WSMX1D", key("windSpeed", record.WindowDay, record.OpMax)),
		kmh("WBMX1D", key("windGust", record.WindowDay, record.OpMax)),
		num("WCAKT_", record.Plain("windchill"), 1),
		num("WCMN1H", key("windchill", record.Window1h, record.OpMin), 1),
		num("WCMN1D", key("windchill", record.WindowDay, record.OpMin), 1),
		num("LDAKT_", record.Plain("barometer"), 1),
		num("LDABS_", record.Plain("pressure"), 1),
		num("LDD1H_", key("barometer", record.Window1h, record.OpDiff), 1),
		num("LDD3H_", key("barometer", record.Window3h, record.OpDiff), 1),
		num("LDD24H", key("barometer", record.Window24h, record.OpDiff), 1),
		num("EVA1D_", key("ET", record.WindowDay, record.OpSum), 1),
		unmapped("SOD1H_"),
		unmapped("SOD1D_"),
		unmapped("BEDGRA"),
		num("SSAKT_", record.Plain("radiation"), 0),
		num("SSMX1H", key("radiation", record.Window1h, record.OpMax), 0),
		num("SSMX1D", record.Plain("maxSolarRad"), 0),
		num("UVINDX", record.Plain("UV"), 1),
		num("UVMX1D", key("UV", record.WindowDay, record.OpMax), 1),
		unmapped("WOLKUG"),
		unmapped("SIWEIT"),
		unmapped("SNEHOE"),
		date("SNEDAT", record.Key{}),
		unmapped("SNEFGR"),
		num("T2M1M_", key("outTemp", record.WindowMonth, record.OpAvg), 1),
		unmapped("T2M1MA"),
		date("RRDATU", record.Key{}),
		num("RRGEST", key("rain", record.WindowYesterday, record.OpSum), 1),
		num("RRD1M_", key("rain", record.WindowMonth, record.OpSum), 1),
		unmapped("RRD1MR"),
		num("RRD1A_", key("rain", record.WindowYear, record.OpSum), 1),
		unmapped("RRD1AR"),
		num("EVAD1M", key("ET", record.WindowMonth, record.OpSum), 1),
		num("EVAD1A", key("ET", record.WindowYear, record.OpSum), 1),
		unmapped("SOD1M_"),
		unmapped("SOD1MR"),
		unmapped("SOD1A_"),
		unmapped("SOD1AR"),
		unmapped("KLTSUM"),
		unmapped("WRMSUM"),
		num("GRASUM", record.Plain(ObsGTSSum), 1),
		date("GRADAT", record.Plain(ObsGTSDate)),
		unmapped("TSOI50"),
		unmapped("TSOI10"),
		unmapped("TSOI20"),
		kmh("WBMX1H", key("windGust", record.Window1h, record.OpMax)),
		num("SSSUMG", record.Plain(ObsRadiationEnergyDay), 1),
	}
}

// Overrides carries the environment-specific source observations an
// operator may bind to the whitelisted wire fields.
type Overrides struct {
	SecondaryTemp string // T5AKT_ / T5MIN_
	SunshineDur   string // SOD1H_ / SOD1D_ / SOD1M_ / SOD1A_
	SoilTemp10    string // TSOI10
	SoilTemp20    string // TSOI20
	SoilTemp50    string // TSOI50
}

var overrideIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validOverride(src string) bool {
	return src != "" && src != "None" && overrideIdent.MatchString(src)
}

// ApplyOverrides resolves the startup table: it substitutes source
// observations into the whitelisted entries and leaves everything else
// untouched. An invalid override is logged and the default entry kept;
// it never fails the pipeline.
func ApplyOverrides(defaults []FieldSpec, ov Overrides, log zerolog.Logger) []FieldSpec {
	table := make([]FieldSpec, len(defaults))
	copy(table, defaults)

	index := make(map[string]int, len(table))
	for i, fs := range table {
		index[fs.WireKey] = i
	}

	bindTemp := func(wireKey, src string, w record.Window, op record.Operator) {
		if src == "" || src == "None" {
			return
		}
		if !overrideIdent.MatchString(src) {
			log.Error().Str("field", wireKey).Str("source", src).
				Msg("invalid field override, keeping default")
			return
		}
		units.RegisterGroup(src, units.GroupTemperature)
		table[index[wireKey]].Key = key(src, w, op)
	}

	bindTemp("T5AKT_", ov.SecondaryTemp, record.WindowNone, record.OpNone)
	// T5MIN_ derives from the same source with a day/min pair added
	bindTemp("T5MIN_", ov.SecondaryTemp, record.WindowDay, record.OpMin)
	bindTemp("TSOI10", ov.SoilTemp10, record.WindowNone, record.OpNone)
	bindTemp("TSOI20", ov.SoilTemp20, record.WindowNone, record.OpNone)
	bindTemp("TSOI50", ov.SoilTemp50, record.WindowNone, record.OpNone)

	if src := ov.SunshineDur; src != "" && src != "None" {
		if !validOverride(src) {
			log.Error().Str("field", "SOD1D_").Str("source", src).
				Msg("invalid sunshine-duration override, keeping default")
		} else {
			units.RegisterGroup(src, units.GroupDeltaTime)
			sun := func(wireKey string, w record.Window, k Kind, s Sunshine) {
				i := index[wireKey]
				table[i].Key = key(src, w, record.OpSum)
				table[i].Kind = k
				table[i].Sunshine = s
			}
			sun("SOD1H_", record.Window1h, KindNumber, SunMinutes)
			sun("SOD1D_", record.WindowDay, KindDuration, SunHMM)
			sun("SOD1M_", record.WindowMonth, KindNumber, SunHours)
			sun("SOD1A_", record.WindowYear, KindNumber, SunHours)
		}
	}

	return table
}
