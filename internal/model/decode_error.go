package model

// DecodeError records a decode failure for a journal line.
type DecodeError struct {
	Seq    uint64 `json:"seq"`
	Name   string `json:"name"`
	Topic0 string `json:"topic0"`
	Error  string `json:"error"`
}
