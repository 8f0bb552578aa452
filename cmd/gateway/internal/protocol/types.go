package protocol

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
)

const (
	TypeAck   = "ack"
	TypeError = "error"
)

// WSRequest is a client command. Symbols are company tickers.
type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Symbols []string `json:"symbols"`
}

// WSResponse answers a command. Quote frames are sent as the bare quote JSON.
type WSResponse struct {
	Type    string `json:"type"`             // "ack", "error"
	ID      string `json:"id,omitempty"`     // Matches request ID
	Status  string `json:"status,omitempty"` // "success", "error"
	Message string `json:"message,omitempty"`
}
