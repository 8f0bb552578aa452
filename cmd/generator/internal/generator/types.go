package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/segmentio/kafka-go"
)

// Clock drives quote timestamps and the tick interval.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Rand picks companies and price steps.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConn is the admin subset of *kafka.Conn used to create the quotes topic.
type KafkaConn interface {
	Controller() (kafka.Broker, error)
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (KafkaConn, error)
}

var _ KafkaConn = (*kafka.Conn)(nil)

type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// NewSeededRand returns a Rand seeded from the wall clock.
func NewSeededRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// BrokerDialer narrows *kafka.Dialer to KafkaDialer.
type BrokerDialer struct{ *kafka.Dialer }

func (d BrokerDialer) DialContext(ctx context.Context, network, address string) (KafkaConn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
