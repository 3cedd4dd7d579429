package deploy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultInitCodeHash is the init code hash of the canonical V3 pool contract.
var DefaultInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")

// Deployer constructs a pool for a validated key and returns its identity.
type Deployer interface {
	Deploy(ctx context.Context, registry, token0, token1 common.Address, fee uint32, tickSpacing int32, salt common.Hash) (common.Address, error)
}

// PoolSalt derives the deterministic salt for a canonical pool key. The same
// (token0, token1, fee) triple always yields the same salt.
func PoolSalt(token0, token1 common.Address, fee uint32) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32),
	)
}

// Create2Deployer derives pool identities with the CREATE2 address scheme.
// With the canonical init code hash it reproduces mainnet pool addresses.
type Create2Deployer struct {
	InitCodeHash common.Hash
}

// Deploy returns the CREATE2 address of the pool for the given salt.
func (d Create2Deployer) Deploy(_ context.Context, registry, _, _ common.Address, _ uint32, _ int32, salt common.Hash) (common.Address, error) {
	if registry == (common.Address{}) {
		return common.Address{}, fmt.Errorf("registry address is zero")
	}
	if d.InitCodeHash == (common.Hash{}) {
		return common.Address{}, fmt.Errorf("init code hash is zero")
	}
	return crypto.CreateAddress2(registry, salt, d.InitCodeHash.Bytes()), nil
}
