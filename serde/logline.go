package serde

import (
	"github.com/hugolhafner/logstream/record"
)

var _ Serde[record.LogRecord] = logLineSerde{}

type logLineSerde struct{}

// LogLine returns a Serde over the access-log line format.
func LogLine() Serde[record.LogRecord] {
	return logLineSerde{}
}

func (logLineSerde) Serialise(_ string, value record.LogRecord) ([]byte, error) {
	return []byte(record.Serialize(value)), nil
}

func (logLineSerde) Deserialise(_ string, data []byte) (record.LogRecord, error) {
	return record.Parse(string(data))
}
