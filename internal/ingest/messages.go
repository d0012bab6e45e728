// Package ingest receives completed archive records from the host engine
// over Kafka and feeds them into the delivery queue.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/wns-uploader/internal/record"
)

// RecordMessage is the JSON envelope the host engine publishes once per
// completed archive interval.
type RecordMessage struct {
	Station  string              `json:"station"`
	DateTime int64               `json:"dateTime"` // epoch seconds
	UsUnits  int                 `json:"usUnits"`
	Fields   map[string]*float64 `json:"fields"`
}

// DecodeRecordMessage decodes and validates one envelope.
func DecodeRecordMessage(data []byte) (*RecordMessage, error) {
	var msg RecordMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid record message: %w", err)
	}
	if msg.DateTime <= 0 {
		return nil, fmt.Errorf("record message without dateTime")
	}
	if !record.System(msg.UsUnits).Known() {
		return nil, fmt.Errorf("unknown unit system %d", msg.UsUnits)
	}
	return &msg, nil
}

// EncodeRecordMessage encodes an envelope, used by the dry-run publisher
// and tests.
func EncodeRecordMessage(msg *RecordMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// ToRecord converts the envelope into a pipeline record. Nil field values
// are carried as absent.
func (m *RecordMessage) ToRecord() *record.Record {
	rec := record.New(time.Unix(m.DateTime, 0), record.System(m.UsUnits))
	for name, v := range m.Fields {
		if v != nil {
			rec.Set(name, *v)
		}
	}
	return rec
}
