package models

// Sample is one canonical sensor reading in long form
type Sample struct {
	Time   int64   // milliseconds since epoch
	Signal string  // PID or signal identifier
	Value  float64
}

// SessionPack describes a built pack for one session
type SessionPack struct {
	SessionID   string                 `json:"sessionId"`
	PackPath    string                 `json:"packPath"`
	Summary     map[string]interface{} `json:"summary"`
	ParquetSize int64                  `json:"parquetSize"`
	Signals     []string               `json:"signals"`
}
