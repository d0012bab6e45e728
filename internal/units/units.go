// Package units converts observation values between the standard unit
// systems and into the field-group-specific units the WNS endpoint
// expects.
package units

import (
	"fmt"

	"github.com/smukkama/wns-uploader/internal/record"
)

// Group names a unit group. Every observation belongs to exactly one
// group; conversion is defined per group.
type Group string

const (
	GroupTemperature Group = "group_temperature"
	GroupPressure    Group = "group_pressure"
	GroupRain        Group = "group_rain"
	GroupSpeed       Group = "group_speed"
	GroupPercent     Group = "group_percent"
	GroupDirection   Group = "group_direction"
	GroupUV          Group = "group_uv"
	GroupRadiation   Group = "group_radiation"
	GroupDeltaTime   Group = "group_deltatime" // seconds in every system
	GroupInterval    Group = "group_interval"  // minutes in every system
	GroupNone        Group = ""
)

// obsGroups maps observation names to their unit group. Derived fields
// the enricher registers (day extrema, hour-ago baselines) are listed
// explicitly so pre-populated records convert correctly.
var obsGroups = map[string]Group{
	"outTemp":     GroupTemperature,
	"inTemp":      GroupTemperature,
	"dewpoint":    GroupTemperature,
	"heatIndex":   GroupTemperature,
	"windchill":   GroupTemperature,
	"extraTemp1":  GroupTemperature,
	"extraTemp2":  GroupTemperature,
	"extraTemp3":  GroupTemperature,
	"soilTemp1":   GroupTemperature,
	"soilTemp2":   GroupTemperature,
	"soilTemp3":   GroupTemperature,
	"soilTemp4":   GroupTemperature,
	"barometer":   GroupPressure,
	"pressure":    GroupPressure,
	"altimeter":   GroupPressure,
	"rain":        GroupRain,
	"hourRain":    GroupRain,
	"rain24":      GroupRain,
	"dayRain":     GroupRain,
	"ET":          GroupRain,
	"windSpeed":   GroupSpeed,
	"windGust":    GroupSpeed,
	"outHumidity": GroupPercent,
	"inHumidity":  GroupPercent,
	"windDir":     GroupDirection,
	"windGustDir": GroupDirection,
	"UV":          GroupUV,
	"radiation":   GroupRadiation,
	"maxSolarRad": GroupRadiation,
	"sunshineDur": GroupDeltaTime,
	"interval":    GroupInterval,

	// derived lookups registered for unit conversion
	"outTempDayMin":    GroupTemperature,
	"outTempDayMax":    GroupTemperature,
	"outTemp1h":        GroupTemperature,
	"windchillDayMin":  GroupTemperature,
	"windchill1hMin":   GroupTemperature,
	"barometer1h":      GroupPressure,
	"UVDayMax":         GroupUV,
}

// GroupFor returns the unit group of an observation, or GroupNone when
// the observation is unknown.
func GroupFor(obs string) Group {
	return obsGroups[obs]
}

// KnownObservation reports whether obs has a registered unit group.
func KnownObservation(obs string) bool {
	_, ok := obsGroups[obs]
	return ok
}

// RegisterGroup adds an observation-to-group mapping, used when a field
// override points a wire field at an environment-specific sensor channel.
func RegisterGroup(obs string, g Group) {
	obsGroups[obs] = g
}

// ToMetricWX converts v from the given system to the MetricWX baseline
// (degC, hPa, mm, m/s). Unknown groups pass through unchanged.
func ToMetricWX(v float64, g Group, from record.System) float64 {
	if from == record.MetricWX {
		return v
	}
	switch g {
	case GroupTemperature:
		if from == record.US {
			return (v - 32.0) * 5.0 / 9.0
		}
	case GroupPressure:
		if from == record.US {
			return v * 33.8639 // inHg -> hPa
		}
	case GroupRain:
		if from == record.US {
			return v * 25.4 // inch -> mm
		}
		return v * 10.0 // cm -> mm
	case GroupSpeed:
		if from == record.US {
			return v * 0.44704 // mph -> m/s
		}
		return v / 3.6 // km/h -> m/s
	}
	return v
}

// ConvertRecord returns a copy of r with every known field converted to
// MetricWX. Fields without a registered group keep their value.
func ConvertRecord(r *record.Record) *record.Record {
	if r.Units == record.MetricWX {
		return r.Clone()
	}
	c := r.Clone()
	c.Units = record.MetricWX
	for name, v := range c.Values {
		if v.Num == nil {
			continue
		}
		g := GroupFor(name)
		if g == GroupNone {
			continue
		}
		c.Set(name, ToMetricWX(*v.Num, g, r.Units))
	}
	return c
}

// SunshineHourMinutes converts a 1-hour sunshine duration from seconds to
// minutes and applies the sanity rule: above 65 minutes the value is a
// measurement error, between 60 and 65 it clamps to 60.
func SunshineHourMinutes(seconds float64) (float64, error) {
	minutes := seconds / 60.0
	if minutes > 65.0 {
		return 0, fmt.Errorf("sunshine duration %.1f min exceeds one hour", minutes)
	}
	if minutes > 60.0 {
		return 60.0, nil
	}
	return minutes, nil
}
