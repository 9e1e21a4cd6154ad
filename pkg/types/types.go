package types

// EventMessage is one frame on the GET /events websocket.
type EventMessage struct {
	Kind     string `json:"kind"`
	Subject  string `json:"subject,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	TimeUnix int64  `json:"ts"`
}

