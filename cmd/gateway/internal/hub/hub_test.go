package hub_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/testutils"
)

func setup(t *testing.T) (*hub.Hub, *testutils.MockQuoteStore) {
	store := testutils.NewMockStore()
	h := hub.NewHub(store, zap.NewNop())
	t.Cleanup(h.Shutdown)
	return h, store
}

var validTickers = map[string]bool{"ACME": true, "GLOBEX": true, "INITECH": true}

func subscribe(symbols ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: protocol.ActionSubscribe, Payload: protocol.RequestPayload{Symbols: symbols}}
}

func unsubscribe(symbols ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{Symbols: symbols}}
}

func TestHub_Subscribe_Success(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	req := subscribe("ACME")
	req.ID = "req-1"
	h.HandleCommand(client, req, validTickers)

	if client.LastMsgType() != "ack" {
		t.Errorf("Expected ack, got %s", client.LastMsgType())
	}
	if client.LastMsg().ID != "req-1" {
		t.Errorf("Expected ack for req-1, got %q", client.LastMsg().ID)
	}
	if store.Subscribed("ACME") != 1 {
		t.Errorf("Expected Redis subscription to ACME")
	}

	// snapshot is delivered asynchronously
	deadline := time.Now().Add(time.Second)
	for len(client.Raw()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if raw := client.Raw(); len(raw) == 0 || !strings.Contains(raw[0], `"company":"ACME"`) {
		t.Errorf("Expected ACME snapshot, got %v", raw)
	}
}

func TestHub_Subscribe_MixedValidity(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("ACME", "INVALID_STOCK"), validTickers)

	lastMsg := client.LastMsg()
	if lastMsg.Status != "success" {
		t.Errorf("Expected success for partial valid subscription")
	}
	if !strings.Contains(lastMsg.Message, "ACME") {
		t.Errorf("Response should contain accepted symbol ACME")
	}
	if strings.Contains(lastMsg.Message, "INVALID_STOCK") {
		t.Errorf("Response should NOT contain invalid symbol")
	}
}

func TestHub_Subscribe_NothingValid(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("NOPE"), validTickers)

	if client.LastMsgType() != "error" {
		t.Errorf("Expected error, got %s", client.LastMsgType())
	}
	if len(store.SubscribedChannels) != 0 {
		t.Errorf("Nothing should be subscribed upstream")
	}
}

func TestHub_Subscribe_Idempotency(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("ACME"), validTickers)
	h.HandleCommand(client, subscribe("ACME"), validTickers)

	// Redis should still have count 1, not 2
	if store.Subscribed("ACME") != 1 {
		t.Errorf("Redis should only subscribe once per unique symbol")
	}
}

func TestHub_RefCountAcrossClients(t *testing.T) {
	h, store := setup(t)
	c1, c2 := testutils.NewMockClient("c1"), testutils.NewMockClient("c2")

	h.HandleCommand(c1, subscribe("ACME"), validTickers)
	h.HandleCommand(c2, subscribe("ACME"), validTickers)
	if store.Subscribed("ACME") != 1 {
		t.Fatalf("Expected one upstream subscription, got %d", store.Subscribed("ACME"))
	}

	h.Unregister(c1)
	if store.Subscribed("ACME") != 1 {
		t.Errorf("Upstream must stay while c2 watches ACME")
	}
	if h.Subscribers("ACME") != 1 {
		t.Errorf("Expected 1 subscriber, got %d", h.Subscribers("ACME"))
	}

	h.Unregister(c2)
	if store.Subscribed("ACME") != 0 {
		t.Errorf("Upstream should be dropped with the last subscriber")
	}
	if !c1.Closed || !c2.Closed {
		t.Errorf("Unregister should close clients")
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, _ := setup(t)
	watcher, other := testutils.NewMockClient("c1"), testutils.NewMockClient("c2")

	h.HandleCommand(watcher, subscribe("GLOBEX"), validTickers)
	h.HandleCommand(other, subscribe("INITECH"), validTickers)

	h.Broadcast("GLOBEX", `{"company":"GLOBEX","value":250.5}`)

	found := false
	for _, raw := range watcher.Raw() {
		if strings.Contains(raw, "250.5") {
			found = true
		}
	}
	if !found {
		t.Errorf("GLOBEX watcher did not receive broadcast")
	}
	for _, raw := range other.Raw() {
		if strings.Contains(raw, "250.5") {
			t.Errorf("INITECH watcher received a GLOBEX quote")
		}
	}
}

func TestHub_Unsubscribe_Logic(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("ACME", "GLOBEX"), validTickers)
	h.HandleCommand(client, unsubscribe("ACME"), validTickers)

	if store.Subscribed("ACME") != 0 {
		t.Errorf("Redis should be unsubscribed from ACME")
	}
	if store.Subscribed("GLOBEX") != 1 {
		t.Errorf("Redis should still be subscribed to GLOBEX")
	}
}

func TestHub_Unsubscribe_NotSubscribed(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	req := unsubscribe("INITECH")
	req.ID = "err-check"
	h.HandleCommand(client, req, validTickers)

	if client.LastMsgType() != "error" {
		t.Errorf("Expected error response for unsubscribing non-watched symbol")
	}
}

func TestHub_UnsubscribeAll(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, subscribe("ACME", "GLOBEX"), validTickers)
	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionUnsubscribeAll}, validTickers)

	store.Mu.Lock()
	defer store.Mu.Unlock()
	if len(store.SubscribedChannels) != 0 {
		t.Errorf("Store should be empty after unsubscribe_all")
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{Action: "buy"}, validTickers)

	if !strings.Contains(client.LastMsg().Message, "Unknown action") {
		t.Errorf("Expected unknown action error, got %+v", client.LastMsg())
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		h.HandleCommand(client, subscribe("ACME"), validTickers)
	}()
	go func() {
		defer wg.Done()
		h.HandleCommand(client, unsubscribe("ACME"), validTickers)
	}()
	go func() {
		defer wg.Done()
		h.Broadcast("ACME", `{}`)
	}()
	go func() {
		defer wg.Done()
		h.Unregister(client)
	}()
	wg.Wait()
}
