package generator

import "context"

// PutResult identifies where the transport stored a record.
type PutResult struct {
	ShardID        string
	SequenceNumber string
}

// Transport is the ingest side of the stream the generator feeds.
type Transport interface {
	PutRecord(ctx context.Context, partitionKey string, payload []byte) (PutResult, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, partitionKey string, payload []byte) (PutResult, error)

func (f TransportFunc) PutRecord(ctx context.Context, partitionKey string, payload []byte) (PutResult, error) {
	return f(ctx, partitionKey, payload)
}
