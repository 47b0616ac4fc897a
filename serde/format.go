package serde

import (
	"fmt"
	"strings"

	"github.com/hugolhafner/logstream/record"
)

// Format names an output encoding for transformed records.
type Format string

const (
	FormatLogLine  Format = "log"
	FormatJSONLine Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatLogLine:
		return FormatLogLine, nil
	case FormatJSONLine:
		return FormatJSONLine, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Serde returns the record serde for f.
func (f Format) Serde() Serde[record.LogRecord] {
	if f == FormatJSONLine {
		return JSONLine()
	}
	return LogLine()
}
