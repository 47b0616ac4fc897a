package serde

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hugolhafner/logstream/record"
	"github.com/valyala/fastjson"
)

var _ Serde[record.LogRecord] = (*jsonLineSerde)(nil)

// JSON field names written by JSONLine.
const (
	FieldClientAddress = "clientAddress"
	FieldTimestamp     = "timestamp"
	FieldMethod        = "method"
	FieldResource      = "resource"
	FieldStatus        = "status"
	FieldBytes         = "bytes"
	FieldUserAgent     = "userAgent"
)

type jsonLineSerde struct {
	arenas  fastjson.ArenaPool
	parsers fastjson.ParserPool
}

// JSONLine returns a Serde rendering a record as a single-line JSON object.
// Timestamps use RFC 3339 with the record's offset.
func JSONLine() Serde[record.LogRecord] {
	return &jsonLineSerde{}
}

func (s *jsonLineSerde) Serialise(_ string, r record.LogRecord) ([]byte, error) {
	a := s.arenas.Get()
	defer s.arenas.Put(a)

	o := a.NewObject()
	o.Set(FieldClientAddress, a.NewString(r.ClientAddress()))
	o.Set(FieldTimestamp, a.NewString(r.Timestamp().Format(time.RFC3339)))
	o.Set(FieldMethod, a.NewString(r.Method()))
	o.Set(FieldResource, a.NewString(r.Resource()))
	o.Set(FieldStatus, a.NewNumberInt(r.Status()))
	o.Set(FieldBytes, a.NewNumberString(strconv.FormatInt(r.Bytes(), 10)))
	o.Set(FieldUserAgent, a.NewString(r.UserAgent()))

	return o.MarshalTo(nil), nil
}

func (s *jsonLineSerde) Deserialise(_ string, data []byte) (record.LogRecord, error) {
	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return record.LogRecord{}, fmt.Errorf("parse json line: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, string(v.GetStringBytes(FieldTimestamp)))
	if err != nil {
		return record.LogRecord{}, fmt.Errorf("parse json line timestamp: %w", err)
	}

	status, err := number(v, FieldStatus)
	if err != nil {
		return record.LogRecord{}, err
	}
	bytes, err := number(v, FieldBytes)
	if err != nil {
		return record.LogRecord{}, err
	}

	return record.New(
		string(v.GetStringBytes(FieldClientAddress)),
		ts,
		string(v.GetStringBytes(FieldMethod)),
		string(v.GetStringBytes(FieldResource)),
		int(status),
		bytes,
		string(v.GetStringBytes(FieldUserAgent)),
	)
}

func number(v *fastjson.Value, field string) (int64, error) {
	f := v.Get(field)
	if f == nil {
		return 0, fmt.Errorf("parse json line: missing %s", field)
	}
	n, err := f.Int64()
	if err != nil {
		return 0, fmt.Errorf("parse json line %s: %w", field, err)
	}
	return n, nil
}
