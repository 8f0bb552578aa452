package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var errTopicNotReady = errors.New("topic has no partitions yet")

type TopicCreator struct {
	logger     *zap.Logger
	dialer     KafkaDialer
	newBackOff func() backoff.BackOff
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// WithBackOff replaces the readiness retry policy.
func (tc *TopicCreator) WithBackOff(f func() backoff.BackOff) *TopicCreator {
	tc.newBackOff = f
	return tc
}

// Create makes sure topicName exists with the given partition count and waits
// until its partitions are visible. An existing topic is not an error.
func (tc *TopicCreator) Create(ctx context.Context, brokers []string, topicName string, partitions int) error {
	var conn KafkaConn
	var err error

	for _, addr := range brokers {
		conn, err = tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if conn == nil {
		if err == nil {
			err = errors.New("no brokers configured")
		}
		return fmt.Errorf("dial brokers: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		tc.logger.Info("Topic creation finished (might already exist)", zap.Error(err))
	} else {
		tc.logger.Info("Topic creation request sent", zap.String("topic", topicName))
	}

	return tc.waitForTopic(ctx, conn, topicName)
}

func (tc *TopicCreator) waitForTopic(ctx context.Context, conn KafkaConn, topicName string) error {
	tc.logger.Info("Waiting for topic initialization...", zap.String("topic", topicName))

	op := func() error {
		partitions, err := conn.ReadPartitions(topicName)
		if err != nil {
			return err
		}
		if len(partitions) == 0 {
			return errTopicNotReady
		}
		tc.logger.Info("Topic is ready!", zap.Int("partitions", len(partitions)))
		return nil
	}
	notify := func(err error, next time.Duration) {
		tc.logger.Debug("Topic not ready", zap.Error(err), zap.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(tc.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("wait for topic %s: %w", topicName, err)
	}
	return nil
}
