package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hugolhafner/logstream/generator"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ generator.Transport = (*Producer)(nil)

// Producer puts generated log lines onto a topic. Records with the same
// partition key land on the same partition.
type Producer struct {
	topic     string
	client    *kgo.Client
	logger    logger.Logger
	telemetry *otel.Telemetry
}

func NewProducer(topic string, opts ...Option) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	cfg := newConfig(opts)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(newKgoLogger(cfg.Logger)),
		kgo.DefaultProduceTopic(topic),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	return &Producer{
		topic:     topic,
		client:    client,
		logger:    cfg.Logger.With("topic", topic),
		telemetry: cfg.Telemetry,
	}, nil
}

// PutRecord produces synchronously and reports the partition as the shard id
// and the offset as the sequence number.
func (p *Producer) PutRecord(ctx context.Context, key string, payload []byte) (generator.PutResult, error) {
	r := p.record(ctx, key, payload)
	produced, err := p.client.ProduceSync(ctx, r).First()
	if err != nil {
		return generator.PutResult{}, fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return putResult(produced), nil
}

func (p *Producer) record(ctx context.Context, key string, payload []byte) *kgo.Record {
	r := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
	}
	p.telemetry.Propagator.Inject(ctx, otel.NewRecordHeadersCarrier(&r.Headers))
	return r
}

func putResult(r *kgo.Record) generator.PutResult {
	return generator.PutResult{
		ShardID:        strconv.FormatInt(int64(r.Partition), 10),
		SequenceNumber: strconv.FormatInt(r.Offset, 10),
	}
}

func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
