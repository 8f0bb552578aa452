package processor

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/config"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

const (
	defaultQueueSize = 100
	defaultTTL       = time.Hour
)

type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	codec      codec.Codec // used when a message has no content-type header
	numWorkers int
	queueSize  int
	ttl        time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	p := &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		codec:      codec.JSON,
		numWorkers: cfg.Processor.NumWorkers,
		queueSize:  cfg.Processor.QueueSize,
		ttl:        cfg.Redis.TTL,
	}
	if c, err := codec.ByName(cfg.Codec.Name); err == nil {
		p.codec = c
	}
	if p.numWorkers <= 0 {
		p.numWorkers = 1
	}
	if p.queueSize <= 0 {
		p.queueSize = defaultQueueSize
	}
	if p.ttl <= 0 {
		p.ttl = defaultTTL
	}
	return p
}

// Run consumes until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan kafka.Message, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan kafka.Message, p.queueSize)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic Sharding: Same company always goes to same worker
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m:
			case <-ctx.Done():
				return
			default:
				// latest quote matters more than every quote
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	// no sends after close
	<-readerDone
	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background() // a drain after shutdown must still reach Redis

	// Last applied quote per company; only valid because of deterministic sharding
	last := make(map[string]*models.Quote)

	for m := range msgs {
		q, err := p.decode(m)
		if err != nil {
			p.logger.Error("Quote Decode Error", zap.Error(err), zap.String("key", string(m.Key)))
			continue
		}
		if q.Company == "" {
			p.logger.Warn("Skipping quote without company", zap.Stringer("quote", q))
			continue
		}

		if q.Equal(last[q.Company]) {
			p.logger.Debug("Skipping duplicate quote", zap.String("company", q.Company), zap.Uint64("hash", q.Hash()))
			continue
		}

		if err := p.apply(ctx, q); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("company", q.Company))
			continue
		}
		p.logger.Debug("Processed", zap.String("company", q.Company), zap.Int("worker_id", id))
		last[q.Company] = q
	}
}

func (p *Processor) decode(m kafka.Message) (*models.Quote, error) {
	c := p.codec
	for _, h := range m.Headers {
		if h.Key == codec.HeaderContentType {
			c = codec.ByContentType(string(h.Value), p.codec)
		}
	}
	return c.Decode(m.Value)
}

// apply stores the snapshot and notifies subscribers in one round trip.
// Redis always holds JSON, whatever the topic carries.
func (p *Processor) apply(ctx context.Context, q *models.Quote) error {
	payload, err := codec.JSON.Encode(q)
	if err != nil {
		return err
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, models.SnapshotKey(q.Company), payload, p.ttl)
	pipe.Publish(ctx, models.Channel(q.Company), payload)
	_, err = pipe.Exec(ctx)
	return err
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
