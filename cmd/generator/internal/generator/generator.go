package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

const (
	defaultInterval = 100 * time.Millisecond
	defaultMaxStep  = 5.0
)

// QuoteGenerator publishes a random walk of quotes for a fixed set of companies.
type QuoteGenerator struct {
	logger     *zap.Logger
	writer     KafkaWriter
	codec      codec.Codec
	companies  []string
	basePrices map[string]float64
	rand       Rand
	clock      Clock
	interval   time.Duration
	maxStep    float64

	// last published value per company; absent until the first quote
	last map[string]decimal.Decimal
}

type Option func(*QuoteGenerator)

func WithInterval(d time.Duration) Option { return func(g *QuoteGenerator) { g.interval = d } }
func WithMaxStep(s float64) Option        { return func(g *QuoteGenerator) { g.maxStep = s } }
func WithCodec(c codec.Codec) Option      { return func(g *QuoteGenerator) { g.codec = c } }

func NewQuoteGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	companies []string,
	basePrices map[string]float64,
	rnd Rand,
	clock Clock,
	opts ...Option,
) *QuoteGenerator {
	g := &QuoteGenerator{
		logger:     logger,
		writer:     writer,
		codec:      codec.JSON,
		companies:  companies,
		basePrices: basePrices,
		rand:       rnd,
		clock:      clock,
		interval:   defaultInterval,
		maxStep:    defaultMaxStep,
		last:       make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *QuoteGenerator) Run(ctx context.Context) {
	g.logger.Info("Generator Started", zap.Strings("companies", g.companies), zap.String("codec", g.codec.Name()))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(g.companies) == 0 {
				g.clock.Sleep(1 * time.Second)
				continue
			}

			company := g.companies[g.rand.Intn(len(g.companies))]
			q := g.Next(company)
			if err := g.Publish(ctx, q); err != nil {
				g.logger.Error("Kafka Write Error", zap.Error(err), zap.String("company", company))
			} else {
				g.logger.Debug("Sent quote", zap.Stringer("quote", q))
			}

			g.clock.Sleep(g.interval)
		}
	}
}

// Next moves company one step along its walk. The first quote of a company
// has no change because there is no earlier value to compare with.
func (g *QuoteGenerator) Next(company string) *models.Quote {
	q := models.NewQuote(company)

	prev, seen := g.last[company]
	if !seen {
		prev = decimal.NewFromFloat(g.basePrices[company]).Round(2)
	}

	step := decimal.NewFromFloat((g.rand.Float64()*2 - 1) * g.maxStep).Round(2)
	value := prev.Add(step)
	if !value.IsPositive() {
		value = prev
	}

	// the walk stays in decimal so steps of 0.01 do not drift
	q.SetValue(value.InexactFloat64())
	if seen {
		q.SetChange(value.Sub(prev).InexactFloat64())
	}
	q.Time = g.clock.Now().UTC().Format(time.RFC3339)

	g.last[company] = value
	return q
}

// Publish writes q keyed by company so that a company's quotes share a partition.
func (g *QuoteGenerator) Publish(ctx context.Context, q *models.Quote) error {
	payload, err := g.codec.Encode(q)
	if err != nil {
		return err
	}
	err = g.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(q.Company),
		Value: payload,
		Headers: []kafka.Header{
			{Key: codec.HeaderContentType, Value: []byte(g.codec.ContentType())},
		},
	})
	if err != nil {
		return fmt.Errorf("write quote for %s: %w", q.Company, err)
	}
	return nil
}
