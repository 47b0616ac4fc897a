package mockprocessor

import (
	"context"

	"github.com/hugolhafner/logstream/processor"
	"github.com/stretchr/testify/mock"
)

var _ processor.Processor = (*MockProcessor)(nil)

type MockProcessor struct {
	mock.Mock
}

func New() *MockProcessor {
	return &MockProcessor{}
}

func (m *MockProcessor) Configure(cfg processor.Config) error {
	args := m.Called(cfg)
	return args.Error(0)
}

func (m *MockProcessor) ProcessBatch(ctx context.Context, batch processor.Batch) (processor.Result, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(processor.Result), args.Error(1)
}
