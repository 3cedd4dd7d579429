package model

// RegistrySnapshot is the durable registry state.
type RegistrySnapshot struct {
	Owner    string       `json:"owner"`
	FeeTiers []FeeTier    `json:"fee_tiers"`
	Pools    []PoolRecord `json:"pools"`
	LastSeq  uint64       `json:"last_seq"`
	SavedAt  string       `json:"saved_at"`
}
