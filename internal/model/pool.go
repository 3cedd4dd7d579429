package model

// PoolRecord describes a created pool for storage.
type PoolRecord struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Pool        string `json:"pool"`
	CreatedSeq  uint64 `json:"created_seq"`
}

// FeeTier pairs an enabled fee with its tick spacing.
type FeeTier struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}
