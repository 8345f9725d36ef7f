package types

// Frame is what travels over the relay websocket, in both directions.
type Frame struct {
	Kind     string `json:"kind"` // "welcome" | "data" | "error"
	Topic    string `json:"topic,omitempty"`
	From     string `json:"from,omitempty"`
	Identity string `json:"identity,omitempty"`
	Room     string `json:"room,omitempty"`
	Reliable bool   `json:"reliable,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

const (
	KindWelcome = "welcome"
	KindData    = "data"
	KindError   = "error"
)
