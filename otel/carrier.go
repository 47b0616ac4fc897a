package otel

import "github.com/twmb/franz-go/pkg/kgo"

// RecordHeadersCarrier adapts the headers of a produced or fetched Kafka
// record to a propagation.TextMapCarrier.
type RecordHeadersCarrier struct {
	Headers *[]kgo.RecordHeader
}

func NewRecordHeadersCarrier(headers *[]kgo.RecordHeader) RecordHeadersCarrier {
	return RecordHeadersCarrier{Headers: headers}
}

func (c RecordHeadersCarrier) Get(key string) string {
	for _, h := range *c.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set overwrites every header named key, or appends one when none exists.
func (c RecordHeadersCarrier) Set(key, value string) {
	found := false
	for i, h := range *c.Headers {
		if h.Key == key {
			(*c.Headers)[i].Value = []byte(value)
			found = true
		}
	}

	if !found {
		*c.Headers = append(*c.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
	}
}

func (c RecordHeadersCarrier) Keys() []string {
	keys := make([]string, len(*c.Headers))
	for i, h := range *c.Headers {
		keys[i] = h.Key
	}
	return keys
}
