package generator_test

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/cmd/generator/internal/generator"
	"github.com/shubham-shewale/quote-stream/cmd/generator/internal/testutils"
	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

func TestGenerator_Logic(t *testing.T) {
	logger := zap.NewNop()
	mockWriter := &testutils.MockKafkaWriter{}

	// Index 0 (ACME), fluctuation (0.5*2-1)*step = 0
	mockRand := &testutils.MockRand{ValInt: 0, ValFloat: 0.5}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}

	gen := generator.NewQuoteGenerator(logger, mockWriter, []string{"ACME"}, map[string]float64{"ACME": 100.0}, mockRand, mockClock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	require.NotEmpty(t, mockWriter.Messages, "Expected messages to be generated")

	msg := mockWriter.Messages[0]
	assert.Equal(t, "ACME", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, codec.HeaderContentType, msg.Headers[0].Key)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))

	q, err := codec.JSON.Decode(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "ACME", q.Company)
	assert.Equal(t, "100", models.FormatFloat(q.Value))
	assert.Nil(t, q.Change, "first quote has no prior value")
	assert.Equal(t, "1970-01-01T00:00:00Z", q.Time)
}

func TestGenerator_NextWalk(t *testing.T) {
	// steps: +0 (first), +2.5, -5
	rnd := &testutils.SeqRand{Floats: []float64{0.5, 0.75, 0.0}}
	clock := &testutils.MockClock{CurrentTime: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	gen := generator.NewQuoteGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"ACME"},
		map[string]float64{"ACME": 100.0}, rnd, clock, generator.WithMaxStep(5))

	first := gen.Next("ACME")
	assert.Equal(t, "100", models.FormatFloat(first.Value))
	assert.Nil(t, first.Change)
	assert.Equal(t, "2024-01-01T10:00:00Z", first.Time)

	second := gen.Next("ACME")
	assert.Equal(t, "102.5", models.FormatFloat(second.Value))
	require.NotNil(t, second.Change)
	assert.Equal(t, "2.5", models.FormatFloat(second.Change))

	third := gen.Next("ACME")
	assert.Equal(t, "97.5", models.FormatFloat(third.Value))
	assert.Equal(t, "-5", models.FormatFloat(third.Change))
}

func TestGenerator_ValueStaysPositive(t *testing.T) {
	rnd := &testutils.MockRand{ValFloat: 0.0} // always -maxStep
	gen := generator.NewQuoteGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"PENNY"},
		map[string]float64{"PENNY": 1.0}, rnd, &testutils.MockClock{}, generator.WithMaxStep(5))

	q := gen.Next("PENNY")
	assert.Equal(t, "1", models.FormatFloat(q.Value))
	q = gen.Next("PENNY")
	assert.Equal(t, "1", models.FormatFloat(q.Value))
	require.NotNil(t, q.Change)
	assert.Zero(t, *q.Change)
}

func TestGenerator_PublishMsgpack(t *testing.T) {
	w := &testutils.MockKafkaWriter{}
	gen := generator.NewQuoteGenerator(zap.NewNop(), w, []string{"ACME"}, map[string]float64{"ACME": 10},
		&testutils.MockRand{ValFloat: 0.5}, &testutils.MockClock{}, generator.WithCodec(codec.MsgPack))

	q := gen.Next("ACME")
	require.NoError(t, gen.Publish(context.Background(), q))
	require.Len(t, w.Messages, 1)
	assert.Equal(t, "application/msgpack", string(w.Messages[0].Headers[0].Value))

	got, err := codec.MsgPack.Decode(w.Messages[0].Value)
	require.NoError(t, err)
	assert.True(t, q.Equal(got))
}

func TestGenerator_PublishError(t *testing.T) {
	w := &testutils.MockKafkaWriter{ShouldFail: true}
	gen := generator.NewQuoteGenerator(zap.NewNop(), w, []string{"ACME"}, nil,
		&testutils.MockRand{ValFloat: 0.5}, &testutils.MockClock{})
	err := gen.Publish(context.Background(), gen.Next("ACME"))
	assert.ErrorContains(t, err, "ACME")
}

func TestTopicCreator_Flow(t *testing.T) {
	logger := zap.NewNop()
	mockDialer := &testutils.MockKafkaDialer{} // Will auto-create ConnSpy

	tc := generator.NewTopicCreator(logger, mockDialer)

	err := tc.Create(context.Background(), []string{"broker:9092"}, "my-topic", 4)
	require.NoError(t, err)

	require.NotNil(t, mockDialer.ConnSpy, "Dialer was never called")
	require.NotEmpty(t, mockDialer.ConnSpy.CreatedTopics)
	assert.Equal(t, "my-topic", mockDialer.ConnSpy.CreatedTopics[0])
}

func TestTopicCreator_WaitsForPartitions(t *testing.T) {
	conn := &testutils.MockKafkaConn{EmptyReads: 2}
	tc := generator.NewTopicCreator(zap.NewNop(), &testutils.MockKafkaDialer{ConnSpy: conn}).
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })

	require.NoError(t, tc.Create(context.Background(), []string{"broker:9092"}, "quotes", 1))
	assert.Equal(t, 3, conn.Reads)
}

func TestTopicCreator_GivesUp(t *testing.T) {
	conn := &testutils.MockKafkaConn{EmptyReads: 100}
	tc := generator.NewTopicCreator(zap.NewNop(), &testutils.MockKafkaDialer{ConnSpy: conn}).
		WithBackOff(func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) })

	err := tc.Create(context.Background(), []string{"broker:9092"}, "quotes", 1)
	assert.Error(t, err)
}

func TestTopicCreator_DialFailure(t *testing.T) {
	tc := generator.NewTopicCreator(zap.NewNop(), &testutils.MockKafkaDialer{Fail: true})
	err := tc.Create(context.Background(), []string{"a:9092", "b:9092"}, "quotes", 1)
	assert.ErrorContains(t, err, "dial brokers")
}
