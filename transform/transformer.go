package transform

import (
	"github.com/hugolhafner/logstream/record"
)

// Transformer applies the field rewrites to a record: address first, then agent.
type Transformer struct {
	anonymize AddressAnonymizer
}

type Option func(*Transformer)

// WithAnonymizer overrides the address digest.
func WithAnonymizer(a AddressAnonymizer) Option {
	return func(t *Transformer) {
		if a != nil {
			t.anonymize = a
		}
	}
}

func NewTransformer(opts ...Option) Transformer {
	t := Transformer{anonymize: AnonymizeAddress}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Apply returns a new record with the address anonymized and the user agent
// replaced by its category. The input record is left untouched.
func (t Transformer) Apply(r record.LogRecord) (record.LogRecord, error) {
	anonymize := t.anonymize
	if anonymize == nil {
		anonymize = AnonymizeAddress
	}

	if r.ClientAddress() == "" {
		return record.LogRecord{}, NewTransformError("clientAddress", r.ClientAddress(), "empty address")
	}
	out := r.WithClientAddress(anonymize(r.ClientAddress()))

	if r.UserAgent() == "" {
		return record.LogRecord{}, NewTransformError("userAgent", r.UserAgent(), "empty user agent")
	}
	return out.WithUserAgent(CategorizeUserAgent(r.UserAgent()).String()), nil
}
