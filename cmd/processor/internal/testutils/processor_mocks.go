package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		// DeadlineExceeded stops the processor loop cleanly in tests
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy missing methods like ACLCat, etc.

	ExecCount    int
	RecordedCmds []string
	Values       map[string]string // SET key -> value
	ShouldFail   bool
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	if b, ok := value.([]byte); ok {
		m.Values[key] = string(b)
	}
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("redis down")
	}
	m.ExecCount++
	return nil, nil
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }
