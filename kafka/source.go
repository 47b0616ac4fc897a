package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/source"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxFetchLinks caps how many producer spans one fetch links to.
const maxFetchLinks = 128

var _ source.Source = (*Source)(nil)

// Source reads one topic partition by partition. Each partition gets its own
// direct (groupless) client so positions are fully controlled by the caller.
type Source struct {
	topic  string
	config Config
	logger logger.Logger

	// meta serves metadata and offset listing requests
	meta  *kgo.Client
	admin *kadm.Client

	mu        sync.Mutex
	consumers map[int32]*partitionConsumer
	closed    bool
}

type partitionConsumer struct {
	mu     sync.Mutex
	client *kgo.Client
	// next is the offset the client delivers next
	next int64
}

func NewSource(topic string, opts ...Option) (*Source, error) {
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	cfg := newConfig(opts)

	meta, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(newKgoLogger(cfg.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	return &Source{
		topic:     topic,
		config:    cfg,
		logger:    cfg.Logger.With("topic", topic),
		meta:      meta,
		admin:     kadm.NewClient(meta),
		consumers: make(map[int32]*partitionConsumer),
	}, nil
}

// ListPartitions returns the topic partitions in ascending order.
func (s *Source) ListPartitions(ctx context.Context) ([]string, error) {
	req := kmsg.NewPtrMetadataRequest()
	t := kmsg.NewMetadataRequestTopic()
	t.Topic = kmsg.StringPtr(s.topic)
	req.Topics = append(req.Topics, t)

	resp, err := req.RequestWith(ctx, s.meta)
	if err != nil {
		return nil, source.NewUnavailableError("", source.Position{}, fmt.Errorf("metadata request: %w", err))
	}

	partitions, err := partitionsFromMetadata(s.topic, resp)
	if err != nil {
		return nil, source.NewUnavailableError("", source.Position{}, err)
	}
	return partitions, nil
}

func partitionsFromMetadata(topic string, resp *kmsg.MetadataResponse) ([]string, error) {
	for _, t := range resp.Topics {
		if t.Topic == nil || *t.Topic != topic {
			continue
		}
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			return nil, fmt.Errorf("topic %s: %w", topic, err)
		}

		ids := make([]int32, 0, len(t.Partitions))
		for _, p := range t.Partitions {
			ids = append(ids, p.Partition)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = strconv.FormatInt(int64(id), 10)
		}
		return out, nil
	}
	return nil, fmt.Errorf("topic %s not found in metadata", topic)
}

// FetchBatch returns what is available at pos within maxWait (capped by the
// configured poll timeout). The returned position is always an offset token.
func (s *Source) FetchBatch(
	ctx context.Context, partition string, pos source.Position, maxWait time.Duration,
) ([]source.Entry, source.Position, error) {
	id, err := parsePartition(partition)
	if err != nil {
		return nil, pos, source.NewUnavailableError(partition, pos, err)
	}

	offset, err := s.resolve(ctx, id, pos)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pos, ctx.Err()
		}
		return nil, pos, source.NewUnavailableError(partition, pos, err)
	}

	pc, err := s.consumer(id, offset)
	if err != nil {
		return nil, pos, source.NewUnavailableError(partition, pos, err)
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	wait := s.config.PollTimeout
	if maxWait > 0 && maxWait < wait {
		wait = maxWait
	}
	pollCtx, cancel := context.WithTimeout(ctx, wait)
	fetches := pc.client.PollRecords(pollCtx, s.config.MaxPollRecords)
	cancel()

	if err := ctx.Err(); err != nil {
		return nil, pos, err
	}
	if err := fetchError(fetches); err != nil {
		s.drop(id)
		return nil, pos, source.NewUnavailableError(partition, pos, err)
	}

	records := fetches.Records()
	s.linkProducers(ctx, records)
	entries, next := toEntries(records, offset)
	pc.next = next
	return entries, source.AtOffset(next), nil
}

// linkProducers links the span in ctx to the spans that produced records,
// taken from the trace context in their headers.
func (s *Source) linkProducers(ctx context.Context, records []*kgo.Record) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	linked := 0
	for _, r := range records {
		if linked == maxFetchLinks {
			return
		}
		pctx := s.config.Telemetry.Propagator.Extract(context.Background(), otel.NewRecordHeadersCarrier(&r.Headers))
		sc := trace.SpanContextFromContext(pctx)
		if !sc.IsValid() {
			continue
		}
		span.AddLink(trace.Link{SpanContext: sc, Attributes: []attribute.KeyValue{otel.AttrOffset.Int64(r.Offset)}})
		linked++
	}
}

// resolve turns pos into a concrete offset.
func (s *Source) resolve(ctx context.Context, partition int32, pos source.Position) (int64, error) {
	var (
		listed kadm.ListedOffsets
		err    error
	)
	switch pos.Kind {
	case source.PositionToken:
		return pos.Offset()
	case source.PositionEarliest:
		listed, err = s.admin.ListStartOffsets(ctx, s.topic)
	default:
		listed, err = s.admin.ListEndOffsets(ctx, s.topic)
	}
	if err != nil {
		return 0, fmt.Errorf("list offsets: %w", err)
	}

	lo, ok := listed.Lookup(s.topic, partition)
	if !ok {
		return 0, fmt.Errorf("partition %d not found", partition)
	}
	if lo.Err != nil {
		return 0, fmt.Errorf("list offsets: %w", lo.Err)
	}
	return lo.Offset, nil
}

// consumer returns the client for partition, recreating it when it would not
// deliver offset next.
func (s *Source) consumer(partition int32, offset int64) (*partitionConsumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, kgo.ErrClientClosed
	}

	if pc, ok := s.consumers[partition]; ok {
		if pc.next == offset {
			return pc, nil
		}
		s.logger.Debug(
			"Repositioning partition consumer", "partition", partition, "from", pc.next, "to", offset,
		)
		pc.client.Close()
		delete(s.consumers, partition)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(s.config.BootstrapServers...),
		kgo.ClientID(s.config.ClientID),
		kgo.WithLogger(newKgoLogger(s.config.Logger)),
		kgo.ConsumePartitions(
			map[string]map[int32]kgo.Offset{
				s.topic: {partition: kgo.NewOffset().At(offset)},
			},
		),
	}
	if s.config.Region != "" {
		opts = append(opts, kgo.Rack(s.config.Region))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create partition client: %w", err)
	}

	pc := &partitionConsumer{client: client, next: offset}
	s.consumers[partition] = pc
	return pc, nil
}

func (s *Source) drop(partition int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pc, ok := s.consumers[partition]; ok {
		pc.client.Close()
		delete(s.consumers, partition)
	}
}

func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, pc := range s.consumers {
		pc.client.Close()
		delete(s.consumers, id)
	}
	s.meta.Close()
}

func parsePartition(partition string) (int32, error) {
	id, err := strconv.ParseInt(partition, 10, 32)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid partition %q", partition)
	}
	return int32(id), nil
}

// fetchError returns the first fetch error that is not a poll timeout.
func fetchError(fetches kgo.Fetches) error {
	var first error
	fetches.EachError(
		func(_ string, _ int32, err error) {
			if first != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}
			first = err
		},
	)
	return first
}

// toEntries converts records and returns the offset following the last one,
// or from when there are none.
func toEntries(records []*kgo.Record, from int64) ([]source.Entry, int64) {
	entries := make([]source.Entry, len(records))
	next := from
	for i, r := range records {
		entries[i] = source.Entry{
			Data:   r.Value,
			Offset: strconv.FormatInt(r.Offset, 10),
		}
		next = r.Offset + 1
	}
	return entries, next
}
