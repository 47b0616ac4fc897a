package mocksource

import (
	"time"

	"github.com/hugolhafner/logstream/source"
)

// Option is a functional option for configuring a Log.
type Option func(*Log)

// WithMaxBatch caps the entries returned per FetchBatch call. Default is 1000.
func WithMaxBatch(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxBatch = n
		}
	}
}

// WithFetchDelay adds an artificial delay to FetchBatch calls.
func WithFetchDelay(d time.Duration) Option {
	return func(l *Log) {
		l.fetchDelay = d
	}
}

// WithFetchError configures an error to be returned by every FetchBatch call.
func WithFetchError(err error) Option {
	return func(l *Log) {
		l.fetchErr = func(string, source.Position) error { return err }
	}
}

// WithPartitionFetchError fails FetchBatch only for one partition.
func WithPartitionFetchError(partition string, err error) Option {
	return func(l *Log) {
		l.fetchErr = func(p string, _ source.Position) error {
			if p == partition {
				return err
			}
			return nil
		}
	}
}

// WithListError configures an error to be returned by ListPartitions.
func WithListError(err error) Option {
	return func(l *Log) {
		l.listErr = err
	}
}

// WithPutError configures an error to be returned by every PutRecord call.
func WithPutError(err error) Option {
	return func(l *Log) {
		l.putErr = func(string, []byte) error { return err }
	}
}
