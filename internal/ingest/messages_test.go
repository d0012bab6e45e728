package ingest

import (
	"testing"

	"github.com/smukkama/wns-uploader/internal/record"
)

func TestDecodeRecordMessage(t *testing.T) {
	data := []byte(`{"station":"TST01","dateTime":1700000000,"usUnits":1,"fields":{"outTemp":68.0,"windSpeed":null}}`)

	msg, err := DecodeRecordMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Station != "TST01" || msg.DateTime != 1700000000 {
		t.Errorf("envelope = %+v", msg)
	}

	rec := msg.ToRecord()
	if rec.Units != record.US {
		t.Errorf("units = %v", rec.Units)
	}
	if rec.Time.Unix() != 1700000000 {
		t.Errorf("time = %v", rec.Time)
	}
	if got := *rec.Get("outTemp").Num; got != 68.0 {
		t.Errorf("outTemp = %v", got)
	}
	// null fields come through as absent, not zero
	if rec.Has("windSpeed") {
		t.Error("null field must be absent")
	}
}

func TestDecodeRecordMessageInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed json", `{"station":`},
		{"missing dateTime", `{"station":"TST01","usUnits":16}`},
		{"unknown unit system", `{"station":"TST01","dateTime":1700000000,"usUnits":9}`},
	}
	for _, tt := range cases {
		if _, err := DecodeRecordMessage([]byte(tt.data)); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := 20.5
	msg := &RecordMessage{
		Station:  "TST01",
		DateTime: 1700000000,
		UsUnits:  int(record.MetricWX),
		Fields:   map[string]*float64{"outTemp": &v},
	}

	data, err := EncodeRecordMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRecordMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Station != msg.Station || *got.Fields["outTemp"] != v {
		t.Errorf("round trip = %+v", got)
	}
}
