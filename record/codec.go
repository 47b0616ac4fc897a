package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultProtocol is written into the request section; it is not retained on parse.
	DefaultProtocol = "HTTP/1.0"
	// DefaultReferer is written when no referer is supplied; it is not retained on parse.
	DefaultReferer = "-"
)

var linePattern = regexp.MustCompile(
	`^(\S+) \S+ \S+ \[([^\]]+)\] "(\S+) (\S+) \S+" (\d+) (\d+) \S+ "([^"]+)"$`,
)

// Parse decodes a single access-log line. The whole line must match;
// any mismatch, including an unparseable timestamp, yields a *MalformedRecordError.
func Parse(line string) (LogRecord, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return LogRecord{}, NewMalformedRecordError(line, "line does not match expected pattern", nil)
	}

	ts, err := time.Parse(TimestampLayout, m[2])
	if err != nil {
		return LogRecord{}, NewMalformedRecordError(line, "invalid timestamp", err)
	}

	status, err := strconv.Atoi(m[5])
	if err != nil {
		return LogRecord{}, NewMalformedRecordError(line, "invalid status", err)
	}

	bytes, err := strconv.ParseInt(m[6], 10, 64)
	if err != nil {
		return LogRecord{}, NewMalformedRecordError(line, "invalid byte count", err)
	}

	return LogRecord{
		clientAddress: m[1],
		timestamp:     ts,
		method:        m[3],
		resource:      m[4],
		status:        status,
		bytes:         bytes,
		userAgent:     m[7],
	}, nil
}

// Serialize renders r in access-log form with DefaultReferer.
func Serialize(r LogRecord) string {
	return SerializeWithReferer(r, DefaultReferer)
}

// SerializeWithReferer renders r with the given referer. The referer is
// quoted as-is and dropped again by Parse.
func SerializeWithReferer(r LogRecord, referer string) string {
	if referer == "" || strings.ContainsAny(referer, " \t\"") {
		referer = DefaultReferer
	}

	var b strings.Builder
	b.Grow(len(r.clientAddress) + len(r.resource) + len(r.userAgent) + len(referer) + 64)
	fmt.Fprintf(
		&b, "%s - - [%s] \"%s %s %s\" %d %d \"%s\" \"%s\"",
		r.clientAddress,
		r.timestamp.Format(TimestampLayout),
		r.method,
		r.resource,
		DefaultProtocol,
		r.status,
		r.bytes,
		referer,
		r.userAgent,
	)
	return b.String()
}
