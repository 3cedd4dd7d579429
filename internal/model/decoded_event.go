package model

// DecodedEvent pairs a journal record with its decoded payload.
type DecodedEvent struct {
	Seq       uint64       `json:"seq"`
	Name      string       `json:"name"`
	EmittedAt string       `json:"emitted_at"`
	Decoded   interface{}  `json:"decoded"`
	Raw       *RawEventRef `json:"raw,omitempty"`
}

// RawEventRef keeps a minimal raw reference for traceability.
type RawEventRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
