package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action of a client message.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventReady   Event = "ready"
	EventBooking Event = "booking"
	EventPong    Event = "pong"
)

// ReadyResponse confirms the subscription. Subject is empty when the
// stream carries every subject.
type ReadyResponse struct {
	Event   Event  `json:"event"`
	Subject string `json:"subject,omitempty"`
}

// BookingResponse wraps one booking event as published to Redis.
type BookingResponse struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
