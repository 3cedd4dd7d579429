package model

// Event is an emitted registry notification before encoding.
type Event struct {
	Seq  uint64      `json:"seq"`
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

// OwnerChangedEventData is the decoded OwnerChanged event payload.
type OwnerChangedEventData struct {
	OldOwner string `json:"old_owner"`
	NewOwner string `json:"new_owner"`
}

// FeeAmountEnabledEventData is the decoded FeeAmountEnabled event payload.
type FeeAmountEnabledEventData struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

// PoolCreatedEventData is the decoded PoolCreated event payload.
type PoolCreatedEventData struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Pool        string `json:"pool"`
}
