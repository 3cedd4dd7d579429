package deploy

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPoolSaltDeterministic(t *testing.T) {
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	first := PoolSalt(token0, token1, 500)
	second := PoolSalt(token0, token1, 500)
	if first != second {
		t.Fatalf("salt not deterministic: %s != %s", first.Hex(), second.Hex())
	}

	if PoolSalt(token0, token1, 3000) == first {
		t.Fatalf("salt ignores fee")
	}
	if PoolSalt(token1, token0, 500) == first {
		t.Fatalf("salt ignores token order")
	}
}

func TestCreate2DeployerMainnetVector(t *testing.T) {
	registry := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	deployer := Create2Deployer{InitCodeHash: DefaultInitCodeHash}
	pool, err := deployer.Deploy(context.Background(), registry, usdc, weth, 500, 10, PoolSalt(usdc, weth, 500))
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	want := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	if pool != want {
		t.Fatalf("pool address mismatch: %s != %s", pool.Hex(), want.Hex())
	}
}

func TestCreate2DeployerRejectsZeroInputs(t *testing.T) {
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	salt := PoolSalt(token0, token1, 500)

	deployer := Create2Deployer{InitCodeHash: DefaultInitCodeHash}
	if _, err := deployer.Deploy(context.Background(), common.Address{}, token0, token1, 500, 10, salt); err == nil {
		t.Fatalf("expected error for zero registry")
	}

	registry := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	deployer = Create2Deployer{}
	if _, err := deployer.Deploy(context.Background(), registry, token0, token1, 500, 10, salt); err == nil {
		t.Fatalf("expected error for zero init code hash")
	}
}
