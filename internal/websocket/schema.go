package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventTick  Event = "tick"
	EventEnded Event = "ended"
	EventPong  Event = "pong"
)

// TickResponse carries one countdown reading. Display is H:MM:SS, capped at
// 24:00:00 for far-off starts.
type TickResponse struct {
	Event            Event  `json:"event"`
	ServerTime       string `json:"server_time"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Display          string `json:"display"`
}

// EndedResponse is sent exactly once when the countdown reaches zero. The
// client refreshes its schedule view on receipt.
type EndedResponse struct {
	Event   Event  `json:"event"`
	ExamID  string `json:"exam_id"`
	Display string `json:"display"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
