package model

import (
	"encoding/json"
)

// EventRecord is the normalized representation of an emitted event for storage.
type EventRecord struct {
	Seq       uint64   `json:"seq"`
	Name      string   `json:"name"`
	Topics    []string `json:"topics"`
	Data      string   `json:"data"`
	EmittedAt string   `json:"emitted_at"`
}

// MarshalJSON ensures EventRecord is encoded with stable field names.
func (er EventRecord) MarshalJSON() ([]byte, error) {
	type Alias EventRecord
	return json.Marshal(Alias(er))
}

// UnmarshalJSON decodes an EventRecord from JSON.
func (er *EventRecord) UnmarshalJSON(data []byte) error {
	type Alias EventRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*er = EventRecord(a)
	return nil
}
