package testutils

import (
	"context"
	"sync"

	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // decoded command responses
	RawBytes []string              // quote frames
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) LastMsg() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockClient) Raw() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

// MockQuoteStore simulates Redis
type MockQuoteStore struct {
	SubscribedChannels map[string]int // company -> count
	Snapshots          map[string]*models.Quote
	Err                error
	Lookups            int
	Mu                 sync.Mutex
}

var _ repository.QuoteStore = (*MockQuoteStore)(nil)

func NewMockStore() *MockQuoteStore {
	return &MockQuoteStore{
		SubscribedChannels: make(map[string]int),
		Snapshots:          make(map[string]*models.Quote),
	}
}

func (m *MockQuoteStore) GetSnapshots(ctx context.Context, companies []string) ([]string, error) {
	return []string{`{"company":"ACME","value":150,"change":null,"time":""}`}, nil
}

func (m *MockQuoteStore) GetSnapshot(ctx context.Context, company string) (*models.Quote, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Lookups++
	if m.Err != nil {
		return nil, m.Err
	}
	q, ok := m.Snapshots[company]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q.Clone(), nil
}

func (m *MockQuoteStore) SubscribeToFeed(ctx context.Context, company string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[company]++
	return nil
}

func (m *MockQuoteStore) UnsubscribeFromFeed(ctx context.Context, company string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[company]--
	if m.SubscribedChannels[company] <= 0 {
		delete(m.SubscribedChannels, company)
	}
	return nil
}

func (m *MockQuoteStore) Subscribed(company string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SubscribedChannels[company]
}

func (m *MockQuoteStore) RunPubSub(ctx context.Context, onMessage func(company string, payload string)) {
	// No-op for unit tests
}

func (m *MockQuoteStore) Close() error { return nil }
