package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/units"
)

// Placeholder is emitted for every field that could not be resolved, so
// the column count of the payload never varies.
const Placeholder = "--"

// ProtocolVersion is the WNS template version tag sent as the first
// header token.
const ProtocolVersion = "WNS_V2.3"

const dateLayout = "02.01.2006"

// Serializer turns an enriched MetricWX record into the positional WNS
// payload and upload URL.
type Serializer struct {
	Station  string
	APIKey   string
	BaseURL  string
	Software string
	Table    []FieldSpec
	Log      zerolog.Logger
}

// Tokens returns the header tokens followed by one token per table entry,
// in table order. A field that fails to resolve is logged and degrades to
// the placeholder; it never suppresses the rest of the record.
func (s *Serializer) Tokens(r *record.Record) []string {
	tokens := make([]string, 0, 5+len(s.Table))

	utc := r.Time.UTC()
	tokens = append(tokens,
		ProtocolVersion,
		s.Software,
		utc.Format("15:04"),
		utc.Format(dateLayout),
		"0", // UTC offset indicator; times above are UTC
	)

	for _, fs := range s.Table {
		tok, err := resolveField(fs, r)
		if err != nil {
			s.Log.Warn().
				Str("field", fs.WireKey).
				Str("source", fs.Key.Name()).
				Err(err).
				Msg("field failed, sending placeholder")
			tok = Placeholder
		}
		tokens = append(tokens, tok)
	}

	return tokens
}

// FormatURL builds the full upload URL:
// <base>?var=<station>;<api_key>;<token>;...
func (s *Serializer) FormatURL(r *record.Record) string {
	body := strings.Join(s.Tokens(r), ";")
	return fmt.Sprintf("%s?var=%s;%s;%s", s.BaseURL, s.Station, s.APIKey, body)
}

// resolveField produces the wire token for one field. The explicit
// value-or-error result keeps one malformed field from blocking the
// other columns.
func resolveField(fs FieldSpec, r *record.Record) (string, error) {
	name := fs.Key.Name()
	if name == "" {
		return Placeholder, nil
	}
	v := r.Get(name)
	if v.IsNil() {
		return Placeholder, nil
	}

	if fs.Kind == KindDate {
		if v.Date == nil {
			return "", fmt.Errorf("expected date value for %s", name)
		}
		return v.Date.Format(dateLayout), nil
	}

	if v.Num == nil {
		return "", fmt.Errorf("expected numeric value for %s", name)
	}
	val := *v.Num

	switch fs.Sunshine {
	case SunMinutes:
		m, err := units.SunshineHourMinutes(val)
		if err != nil {
			return "", err
		}
		val = m
	case SunHMM:
		val = val / 60.0 // seconds to minutes, split below
	case SunHours:
		val = val / 3600.0
	}

	if fs.Kind == KindDuration {
		return formatDuration(val), nil
	}

	val *= fs.Factor
	return strconv.FormatFloat(val, 'f', fs.Decimals, 64), nil
}

// formatDuration renders a duration given in minutes as H:MM.
func formatDuration(minutes float64) string {
	total := int(minutes + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
