package repository

import (
	"context"
	"errors"

	"github.com/shubham-shewale/quote-stream/pkg/models"
)

var ErrNotFound = errors.New("quote not found")

type QuoteStore interface {
	// GetSnapshots returns the stored JSON of every company that has one.
	GetSnapshots(ctx context.Context, companies []string) ([]string, error)
	GetSnapshot(ctx context.Context, company string) (*models.Quote, error)
	SubscribeToFeed(ctx context.Context, company string) error
	UnsubscribeFromFeed(ctx context.Context, company string) error
	RunPubSub(ctx context.Context, onMessage func(company string, payload string))
	Close() error
}
