package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the access-log timestamp format, dd/Mon/yyyy:HH:mm:ss +ZZZZ.
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

// LogRecord is a simplified access-log entry. It is immutable: the With*
// methods return modified copies and never touch the receiver.
type LogRecord struct {
	clientAddress string
	timestamp     time.Time
	method        string
	resource      string
	status        int
	bytes         int64
	userAgent     string
}

var (
	ErrEmptyField    = errors.New("field must not be empty")
	ErrInvalidField  = errors.New("field contains a delimiter character")
	ErrNegativeBytes = errors.New("bytes must not be negative")
	ErrZeroTimestamp = errors.New("timestamp must be set")
)

// New builds a record whose serialised form is guaranteed to parse back.
func New(
	clientAddress string, timestamp time.Time, method, resource string, status int, bytes int64,
	userAgent string,
) (LogRecord, error) {
	if err := validateToken("clientAddress", clientAddress); err != nil {
		return LogRecord{}, err
	}
	if err := validateToken("method", method); err != nil {
		return LogRecord{}, err
	}
	if err := validateToken("resource", resource); err != nil {
		return LogRecord{}, err
	}
	if err := validateUserAgent(userAgent); err != nil {
		return LogRecord{}, err
	}
	if timestamp.IsZero() {
		return LogRecord{}, ErrZeroTimestamp
	}
	if status < 0 {
		return LogRecord{}, fmt.Errorf("status %d: %w", status, ErrInvalidField)
	}
	if bytes < 0 {
		return LogRecord{}, ErrNegativeBytes
	}

	return LogRecord{
		clientAddress: clientAddress,
		timestamp:     timestamp.Truncate(time.Second),
		method:        method,
		resource:      resource,
		status:        status,
		bytes:         bytes,
		userAgent:     userAgent,
	}, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(
	clientAddress string, timestamp time.Time, method, resource string, status int, bytes int64,
	userAgent string,
) LogRecord {
	r, err := New(clientAddress, timestamp, method, resource, status, bytes, userAgent)
	if err != nil {
		panic(err)
	}
	return r
}

// ValidateToken reports whether v can be written as the named space-delimited
// field of a log line.
func ValidateToken(name, v string) error {
	return validateToken(name, v)
}

// ValidateUserAgent reports whether v can be written as the quoted user agent.
func ValidateUserAgent(v string) error {
	return validateUserAgent(v)
}

func validateToken(name, v string) error {
	if v == "" {
		return fmt.Errorf("%s: %w", name, ErrEmptyField)
	}
	if strings.ContainsAny(v, " \t\r\n\"") {
		return fmt.Errorf("%s %q: %w", name, v, ErrInvalidField)
	}
	return nil
}

func validateUserAgent(v string) error {
	if v == "" {
		return fmt.Errorf("userAgent: %w", ErrEmptyField)
	}
	if strings.ContainsAny(v, "\"\r\n") {
		return fmt.Errorf("userAgent %q: %w", v, ErrInvalidField)
	}
	return nil
}

func (r LogRecord) ClientAddress() string { return r.clientAddress }
func (r LogRecord) Timestamp() time.Time  { return r.timestamp }
func (r LogRecord) Method() string        { return r.method }
func (r LogRecord) Resource() string      { return r.resource }
func (r LogRecord) Status() int           { return r.status }
func (r LogRecord) Bytes() int64          { return r.bytes }
func (r LogRecord) UserAgent() string     { return r.userAgent }

// WithClientAddress returns a copy of r with a different client address.
func (r LogRecord) WithClientAddress(addr string) LogRecord {
	r.clientAddress = addr
	return r
}

// WithUserAgent returns a copy of r with a different user agent.
func (r LogRecord) WithUserAgent(ua string) LogRecord {
	r.userAgent = ua
	return r
}

// Equal compares records field by field, timestamps by their rendered form.
func (r LogRecord) Equal(o LogRecord) bool {
	return r.clientAddress == o.clientAddress &&
		r.timestamp.Format(TimestampLayout) == o.timestamp.Format(TimestampLayout) &&
		r.method == o.method &&
		r.resource == o.resource &&
		r.status == o.status &&
		r.bytes == o.bytes &&
		r.userAgent == o.userAgent
}

func (r LogRecord) String() string {
	return fmt.Sprintf(
		"%s %s %s %s %d %d %s", r.clientAddress, r.timestamp.Format(time.RFC3339), r.method, r.resource,
		r.status, r.bytes, r.userAgent,
	)
}
