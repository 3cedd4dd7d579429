package factory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"poolFactory/internal/deploy"
	"poolFactory/internal/guard"
	"poolFactory/internal/model"
)

// MaxFee bounds enabled fee values; fees are expressed in hundredths of a bip.
const MaxFee uint32 = 1_000_000

// MaxTickSpacing caps the spacing consumed by the pool's bitmap tick search,
// whose 16-bit word arithmetic overflows for larger spacings. The bound is a
// contract with the pool implementation; treat it as fixed, not derivable here.
const MaxTickSpacing int32 = 16384

// defaultFeeTiers are enabled at initialization, in this order.
var defaultFeeTiers = []model.FeeTier{
	{Fee: 500, TickSpacing: 10},
	{Fee: 3000, TickSpacing: 60},
	{Fee: 10000, TickSpacing: 200},
}

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Registry tracks enabled fee tiers and at most one pool per canonical
// (token0, token1, fee) key. Mutations are serialized behind a single lock;
// CreatePool holds it across the full validate, deploy, record sequence so
// concurrent identical requests cannot both deploy. Lookups take the read
// side.
type Registry struct {
	mu       sync.RWMutex
	identity common.Address
	owner    common.Address
	deployer deploy.Deployer
	sink     EventSink
	feeTiers map[uint32]int32
	tierList []model.FeeTier
	pools    map[poolKey]common.Address
	poolList []model.PoolRecord
	lastSeq  uint64
}

// NewRegistry creates a registry with the built-in fee tiers enabled. It
// emits OwnerChanged from the zero address followed by one FeeAmountEnabled
// per built-in tier.
func NewRegistry(identity, owner common.Address, deployer deploy.Deployer, sink EventSink) (*Registry, error) {
	if identity == (common.Address{}) {
		return nil, fmt.Errorf("registry identity is zero")
	}
	if owner == (common.Address{}) {
		return nil, ErrZeroOwner
	}
	if deployer == nil {
		return nil, fmt.Errorf("deployer is nil")
	}

	r := &Registry{
		identity: identity,
		deployer: deployer,
		sink:     sink,
		feeTiers: make(map[uint32]int32),
		pools:    make(map[poolKey]common.Address),
	}

	r.setOwner(common.Address{}, owner)
	for _, tier := range defaultFeeTiers {
		r.enableTier(tier.Fee, tier.TickSpacing)
	}

	return r, nil
}

// Restore rebuilds a registry from a snapshot without emitting events. Every
// record is re-validated against the registry invariants.
func Restore(identity common.Address, snap model.RegistrySnapshot, deployer deploy.Deployer, sink EventSink) (*Registry, error) {
	if identity == (common.Address{}) {
		return nil, fmt.Errorf("registry identity is zero")
	}
	if deployer == nil {
		return nil, fmt.Errorf("deployer is nil")
	}

	owner, err := parseAddress(snap.Owner)
	if err != nil {
		return nil, fmt.Errorf("snapshot owner: %w", err)
	}
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("snapshot owner is zero")
	}

	r := &Registry{
		identity: identity,
		owner:    owner,
		deployer: deployer,
		sink:     sink,
		feeTiers: make(map[uint32]int32, len(snap.FeeTiers)),
		pools:    make(map[poolKey]common.Address, len(snap.Pools)),
		lastSeq:  snap.LastSeq,
	}

	for _, tier := range snap.FeeTiers {
		if tier.Fee >= MaxFee {
			return nil, fmt.Errorf("snapshot fee %d out of range", tier.Fee)
		}
		if tier.TickSpacing <= 0 || tier.TickSpacing >= MaxTickSpacing {
			return nil, fmt.Errorf("snapshot tick spacing %d out of range for fee %d", tier.TickSpacing, tier.Fee)
		}
		if _, exists := r.feeTiers[tier.Fee]; exists {
			return nil, fmt.Errorf("snapshot fee tier %d duplicated", tier.Fee)
		}
		r.feeTiers[tier.Fee] = tier.TickSpacing
		r.tierList = append(r.tierList, tier)
	}

	for _, record := range snap.Pools {
		token0, err := parseAddress(record.Token0)
		if err != nil {
			return nil, fmt.Errorf("snapshot pool token0: %w", err)
		}
		token1, err := parseAddress(record.Token1)
		if err != nil {
			return nil, fmt.Errorf("snapshot pool token1: %w", err)
		}
		pool, err := parseAddress(record.Pool)
		if err != nil {
			return nil, fmt.Errorf("snapshot pool address: %w", err)
		}
		if token0 == (common.Address{}) || pool == (common.Address{}) {
			return nil, fmt.Errorf("snapshot pool %s holds a zero address", record.Pool)
		}
		if bytes.Compare(token0.Bytes(), token1.Bytes()) >= 0 {
			return nil, fmt.Errorf("snapshot pool %s tokens are not canonical", record.Pool)
		}
		tickSpacing, ok := r.feeTiers[record.Fee]
		if !ok {
			return nil, fmt.Errorf("snapshot pool %s references unknown fee %d", record.Pool, record.Fee)
		}
		if tickSpacing != record.TickSpacing {
			return nil, fmt.Errorf("snapshot pool %s tick spacing %d does not match tier %d", record.Pool, record.TickSpacing, tickSpacing)
		}
		key := poolKey{token0: token0, token1: token1, fee: record.Fee}
		if _, exists := r.pools[key]; exists {
			return nil, fmt.Errorf("snapshot pool key %s/%s/%d duplicated", record.Token0, record.Token1, record.Fee)
		}
		r.pools[key] = pool
		r.poolList = append(r.poolList, record)
	}

	return r, nil
}

// CreatePool validates the pair and fee, deploys the pool, and records it
// under the canonical key. Any caller may create pools.
func (r *Registry) CreatePool(ctx context.Context, caller, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	if err := guard.Check(ctx, r.identity); err != nil {
		return common.Address{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tokenA == tokenB {
		return common.Address{}, ErrIdenticalTokens
	}
	token0, token1 := SortTokens(tokenA, tokenB)
	if token0 == (common.Address{}) {
		return common.Address{}, ErrZeroToken
	}
	tickSpacing, ok := r.feeTiers[fee]
	if !ok {
		return common.Address{}, ErrUnknownFeeTier
	}
	key := poolKey{token0: token0, token1: token1, fee: fee}
	if _, exists := r.pools[key]; exists {
		return common.Address{}, ErrPoolExists
	}

	salt := deploy.PoolSalt(token0, token1, fee)
	pool, err := r.deployer.Deploy(ctx, r.identity, token0, token1, fee, tickSpacing, salt)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy pool: %w", err)
	}

	r.pools[key] = pool
	seq := r.emit("PoolCreated", model.PoolCreatedEventData{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         fee,
		TickSpacing: tickSpacing,
		Pool:        pool.Hex(),
	})
	r.poolList = append(r.poolList, model.PoolRecord{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         fee,
		TickSpacing: tickSpacing,
		Pool:        pool.Hex(),
		CreatedSeq:  seq,
	})

	return pool, nil
}

// EnableFeeTier whitelists a fee with its tick spacing. Owner only; a tier,
// once enabled, is immutable for the registry lifetime.
func (r *Registry) EnableFeeTier(ctx context.Context, caller common.Address, fee uint32, tickSpacing int32) error {
	if err := guard.Check(ctx, r.identity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if fee >= MaxFee {
		return ErrFeeOutOfRange
	}
	if tickSpacing <= 0 || tickSpacing >= MaxTickSpacing {
		return ErrTickSpacingOutOfRange
	}
	if _, exists := r.feeTiers[fee]; exists {
		return ErrFeeTierEnabled
	}

	r.enableTier(fee, tickSpacing)
	return nil
}

// TransferOwnership hands the owner role to newOwner. Owner only. Any
// identity except zero is accepted, including one nobody controls; the owner
// never returns to the zero address after initialization.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if err := guard.Check(ctx, r.identity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if newOwner == (common.Address{}) {
		return ErrZeroOwner
	}
	r.setOwner(r.owner, newOwner)
	return nil
}

// LookupPool returns the pool for a pair and fee. Token order does not matter.
func (r *Registry) LookupPool(tokenA, tokenB common.Address, fee uint32) (common.Address, bool) {
	token0, token1 := SortTokens(tokenA, tokenB)

	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[poolKey{token0: token0, token1: token1, fee: fee}]
	return pool, ok
}

// LookupFeeTier returns the tick spacing for an enabled fee.
func (r *Registry) LookupFeeTier(fee uint32) (int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tickSpacing, ok := r.feeTiers[fee]
	return tickSpacing, ok
}

// Owner returns the current privileged principal.
func (r *Registry) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.owner
}

// Snapshot captures the registry state for persistence.
func (r *Registry) Snapshot() model.RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tiers := make([]model.FeeTier, len(r.tierList))
	copy(tiers, r.tierList)
	pools := make([]model.PoolRecord, len(r.poolList))
	copy(pools, r.poolList)

	return model.RegistrySnapshot{
		Owner:    r.owner.Hex(),
		FeeTiers: tiers,
		Pools:    pools,
		LastSeq:  r.lastSeq,
	}
}

// SortTokens orders a pair by byte comparison of the raw addresses.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

func (r *Registry) setOwner(old, next common.Address) {
	r.owner = next
	r.emit("OwnerChanged", model.OwnerChangedEventData{
		OldOwner: old.Hex(),
		NewOwner: next.Hex(),
	})
}

func (r *Registry) enableTier(fee uint32, tickSpacing int32) {
	r.feeTiers[fee] = tickSpacing
	r.tierList = append(r.tierList, model.FeeTier{Fee: fee, TickSpacing: tickSpacing})
	r.emit("FeeAmountEnabled", model.FeeAmountEnabledEventData{
		Fee:         fee,
		TickSpacing: tickSpacing,
	})
}

func (r *Registry) emit(name string, data interface{}) uint64 {
	r.lastSeq++
	if r.sink != nil {
		r.sink.Emit(model.Event{Seq: r.lastSeq, Name: name, Data: data})
	}
	return r.lastSeq
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}
