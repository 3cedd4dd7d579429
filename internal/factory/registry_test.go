package factory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"poolFactory/internal/deploy"
	"poolFactory/internal/guard"
	"poolFactory/internal/model"
)

var (
	testIdentity = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	testOwner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenX       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenY       = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type recordingSink struct {
	events []model.Event
}

func (s *recordingSink) Emit(event model.Event) {
	s.events = append(s.events, event)
}

func (s *recordingSink) named(name string) []model.Event {
	var out []model.Event
	for _, event := range s.events {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

type flakyDeployer struct {
	inner deploy.Deployer
	fails int
	calls int
}

func (d *flakyDeployer) Deploy(ctx context.Context, registry, token0, token1 common.Address, fee uint32, tickSpacing int32, salt common.Hash) (common.Address, error) {
	d.calls++
	if d.calls <= d.fails {
		return common.Address{}, fmt.Errorf("deployer unavailable")
	}
	return d.inner.Deploy(ctx, registry, token0, token1, fee, tickSpacing, salt)
}

func newTestRegistry(t *testing.T) (*Registry, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	registry, err := NewRegistry(testIdentity, testOwner, deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash}, sink)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry, sink
}

func TestNewRegistryDefaults(t *testing.T) {
	registry, sink := newTestRegistry(t)

	checks := []struct {
		fee     uint32
		spacing int32
	}{
		{500, 10},
		{3000, 60},
		{10000, 200},
	}
	for _, check := range checks {
		spacing, ok := registry.LookupFeeTier(check.fee)
		if !ok || spacing != check.spacing {
			t.Fatalf("fee %d: got (%d, %v), want (%d, true)", check.fee, spacing, ok, check.spacing)
		}
	}

	if _, ok := registry.LookupFeeTier(7); ok {
		t.Fatalf("fee 7 should be absent")
	}
	if registry.Owner() != testOwner {
		t.Fatalf("owner mismatch: %s", registry.Owner().Hex())
	}

	if len(sink.events) != 4 {
		t.Fatalf("expected 4 init events, got %d", len(sink.events))
	}
	for i, event := range sink.events {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
	}

	ownerChanged, ok := sink.events[0].Data.(model.OwnerChangedEventData)
	if !ok || sink.events[0].Name != "OwnerChanged" {
		t.Fatalf("first event is not OwnerChanged: %+v", sink.events[0])
	}
	if ownerChanged.OldOwner != (common.Address{}).Hex() || ownerChanged.NewOwner != testOwner.Hex() {
		t.Fatalf("owner change payload mismatch: %+v", ownerChanged)
	}

	wantTiers := []model.FeeAmountEnabledEventData{
		{Fee: 500, TickSpacing: 10},
		{Fee: 3000, TickSpacing: 60},
		{Fee: 10000, TickSpacing: 200},
	}
	for i, event := range sink.events[1:] {
		if event.Name != "FeeAmountEnabled" {
			t.Fatalf("event %d is %s", i+1, event.Name)
		}
		payload, ok := event.Data.(model.FeeAmountEnabledEventData)
		if !ok || payload != wantTiers[i] {
			t.Fatalf("tier event %d mismatch: %+v", i, event.Data)
		}
	}
}

func TestNewRegistryRejectsZeroInputs(t *testing.T) {
	deployer := deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash}
	if _, err := NewRegistry(common.Address{}, testOwner, deployer, nil); err == nil {
		t.Fatalf("expected error for zero identity")
	}
	if _, err := NewRegistry(testIdentity, common.Address{}, deployer, nil); !errors.Is(err, ErrZeroOwner) {
		t.Fatalf("expected ErrZeroOwner, got %v", err)
	}
	if _, err := NewRegistry(testIdentity, testOwner, nil, nil); err == nil {
		t.Fatalf("expected error for nil deployer")
	}
}

func TestCreatePoolBothOrders(t *testing.T) {
	registry, sink := newTestRegistry(t)
	ctx := context.Background()

	pool, err := registry.CreatePool(ctx, testOwner, tokenX, tokenY, 500)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if pool == (common.Address{}) {
		t.Fatalf("pool address is zero")
	}

	if _, err := registry.CreatePool(ctx, testOwner, tokenY, tokenX, 500); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}

	forward, okForward := registry.LookupPool(tokenX, tokenY, 500)
	reverse, okReverse := registry.LookupPool(tokenY, tokenX, 500)
	if !okForward || !okReverse || forward != pool || reverse != pool {
		t.Fatalf("lookup mismatch: forward=%s reverse=%s pool=%s", forward.Hex(), reverse.Hex(), pool.Hex())
	}

	created := sink.named("PoolCreated")
	if len(created) != 1 {
		t.Fatalf("expected 1 PoolCreated event, got %d", len(created))
	}
	payload, ok := created[0].Data.(model.PoolCreatedEventData)
	if !ok {
		t.Fatalf("payload type mismatch: %T", created[0].Data)
	}
	want := model.PoolCreatedEventData{
		Token0:      tokenX.Hex(),
		Token1:      tokenY.Hex(),
		Fee:         500,
		TickSpacing: 10,
		Pool:        pool.Hex(),
	}
	if payload != want {
		t.Fatalf("payload mismatch: %+v != %+v", payload, want)
	}
}

func TestCreatePoolMainnetVector(t *testing.T) {
	registry, _ := newTestRegistry(t)

	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	pool, err := registry.CreatePool(context.Background(), testOwner, weth, usdc, 500)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	want := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	if pool != want {
		t.Fatalf("pool address mismatch: %s != %s", pool.Hex(), want.Hex())
	}
}

func TestCreatePoolIdenticalTokens(t *testing.T) {
	registry, sink := newTestRegistry(t)
	before := len(sink.events)

	if _, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenX, 500); !errors.Is(err, ErrIdenticalTokens) {
		t.Fatalf("expected ErrIdenticalTokens, got %v", err)
	}
	if _, err := registry.CreatePool(context.Background(), testOwner, common.Address{}, common.Address{}, 500); !errors.Is(err, ErrIdenticalTokens) {
		t.Fatalf("expected ErrIdenticalTokens for zero pair, got %v", err)
	}

	if len(sink.events) != before {
		t.Fatalf("failed create emitted events")
	}
}

func TestCreatePoolZeroToken(t *testing.T) {
	registry, _ := newTestRegistry(t)

	if _, err := registry.CreatePool(context.Background(), testOwner, common.Address{}, tokenY, 500); !errors.Is(err, ErrZeroToken) {
		t.Fatalf("expected ErrZeroToken, got %v", err)
	}
	if _, err := registry.CreatePool(context.Background(), testOwner, tokenY, common.Address{}, 500); !errors.Is(err, ErrZeroToken) {
		t.Fatalf("expected ErrZeroToken with operands flipped, got %v", err)
	}
}

func TestCreatePoolUnknownFeeTier(t *testing.T) {
	registry, _ := newTestRegistry(t)

	if _, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenY, 7); !errors.Is(err, ErrUnknownFeeTier) {
		t.Fatalf("expected ErrUnknownFeeTier, got %v", err)
	}
}

func TestCreatePoolDeployFailureLeavesNoState(t *testing.T) {
	sink := &recordingSink{}
	deployer := &flakyDeployer{
		inner: deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash},
		fails: 1,
	}
	registry, err := NewRegistry(testIdentity, testOwner, deployer, sink)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	before := registry.Snapshot()
	if _, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenY, 500); err == nil {
		t.Fatalf("expected deploy failure to propagate")
	}
	if _, ok := registry.LookupPool(tokenX, tokenY, 500); ok {
		t.Fatalf("failed deploy left a pool record")
	}
	if !reflect.DeepEqual(before, registry.Snapshot()) {
		t.Fatalf("failed deploy mutated state")
	}

	pool, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenY, 500)
	if err != nil {
		t.Fatalf("retry after deploy failure: %v", err)
	}
	if got, ok := registry.LookupPool(tokenX, tokenY, 500); !ok || got != pool {
		t.Fatalf("retried pool not recorded")
	}
}

func TestEnableFeeTier(t *testing.T) {
	registry, sink := newTestRegistry(t)
	ctx := context.Background()
	outsider := common.HexToAddress("0x2222222222222222222222222222222222222222")

	if err := registry.EnableFeeTier(ctx, outsider, 2500, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 2500, 50); err != nil {
		t.Fatalf("enable fee tier: %v", err)
	}

	enabled := sink.named("FeeAmountEnabled")
	payload, ok := enabled[len(enabled)-1].Data.(model.FeeAmountEnabledEventData)
	if !ok || payload.Fee != 2500 || payload.TickSpacing != 50 {
		t.Fatalf("tier event mismatch: %+v", enabled[len(enabled)-1].Data)
	}

	if err := registry.EnableFeeTier(ctx, testOwner, 2500, 60); !errors.Is(err, ErrFeeTierEnabled) {
		t.Fatalf("expected ErrFeeTierEnabled, got %v", err)
	}
	if spacing, _ := registry.LookupFeeTier(2500); spacing != 50 {
		t.Fatalf("re-enable modified tick spacing: %d", spacing)
	}

	pool, err := registry.CreatePool(ctx, outsider, tokenX, tokenY, 2500)
	if err != nil {
		t.Fatalf("create pool on new tier: %v", err)
	}
	created := sink.named("PoolCreated")
	data := created[len(created)-1].Data.(model.PoolCreatedEventData)
	if data.TickSpacing != 50 || data.Pool != pool.Hex() {
		t.Fatalf("pool event mismatch: %+v", data)
	}
}

func TestEnableFeeTierBounds(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.EnableFeeTier(ctx, testOwner, MaxFee, 50); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected ErrFeeOutOfRange at MaxFee, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, MaxFee+1, 50); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected ErrFeeOutOfRange above MaxFee, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, MaxFee-1, 50); err != nil {
		t.Fatalf("largest enableable fee rejected: %v", err)
	}

	if err := registry.EnableFeeTier(ctx, testOwner, 100, 0); !errors.Is(err, ErrTickSpacingOutOfRange) {
		t.Fatalf("expected ErrTickSpacingOutOfRange for zero, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 100, -10); !errors.Is(err, ErrTickSpacingOutOfRange) {
		t.Fatalf("expected ErrTickSpacingOutOfRange for negative, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 100, 20000); !errors.Is(err, ErrTickSpacingOutOfRange) {
		t.Fatalf("expected ErrTickSpacingOutOfRange for 20000, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 100, MaxTickSpacing); !errors.Is(err, ErrTickSpacingOutOfRange) {
		t.Fatalf("expected ErrTickSpacingOutOfRange at MaxTickSpacing, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 100, MaxTickSpacing-1); err != nil {
		t.Fatalf("largest valid tick spacing rejected: %v", err)
	}
}

func TestFeeTierInvariantHolds(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_ = registry.EnableFeeTier(ctx, testOwner, 2500, 50)
	_ = registry.EnableFeeTier(ctx, testOwner, MaxFee, 50)
	_ = registry.EnableFeeTier(ctx, testOwner, 100, 0)
	_, _ = registry.CreatePool(ctx, testOwner, tokenX, tokenY, 2500)

	snap := registry.Snapshot()
	for _, tier := range snap.FeeTiers {
		if tier.Fee >= MaxFee {
			t.Fatalf("tier fee %d breaks the bound", tier.Fee)
		}
		if tier.TickSpacing <= 0 || tier.TickSpacing >= MaxTickSpacing {
			t.Fatalf("tier spacing %d breaks the bound", tier.TickSpacing)
		}
	}
}

func TestTransferOwnership(t *testing.T) {
	registry, sink := newTestRegistry(t)
	ctx := context.Background()
	next := common.HexToAddress("0x3333333333333333333333333333333333333333")

	if err := registry.TransferOwnership(ctx, next, next); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := registry.TransferOwnership(ctx, testOwner, next); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if registry.Owner() != next {
		t.Fatalf("owner not updated: %s", registry.Owner().Hex())
	}

	changes := sink.named("OwnerChanged")
	payload := changes[len(changes)-1].Data.(model.OwnerChangedEventData)
	if payload.OldOwner != testOwner.Hex() || payload.NewOwner != next.Hex() {
		t.Fatalf("owner change payload mismatch: %+v", payload)
	}

	if err := registry.EnableFeeTier(ctx, testOwner, 2500, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old owner still authorized")
	}
	if err := registry.EnableFeeTier(ctx, next, 2500, 50); err != nil {
		t.Fatalf("new owner rejected: %v", err)
	}
}

func TestTransferOwnershipRejectsZeroOwner(t *testing.T) {
	registry, sink := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.TransferOwnership(ctx, testOwner, common.Address{}); !errors.Is(err, ErrZeroOwner) {
		t.Fatalf("expected ErrZeroOwner, got %v", err)
	}
	if registry.Owner() != testOwner {
		t.Fatalf("owner changed: %s", registry.Owner().Hex())
	}
	if len(sink.events) != 4 {
		t.Fatalf("rejected transfer emitted events")
	}

	deployer := deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash}
	if _, err := Restore(testIdentity, registry.Snapshot(), deployer, nil); err != nil {
		t.Fatalf("snapshot no longer restores: %v", err)
	}
}

func TestCreatePoolConcurrentIdenticalRequests(t *testing.T) {
	registry, sink := newTestRegistry(t)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenY, 500)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrPoolExists):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != workers-1 {
		t.Fatalf("expected one winner, got %d successes and %d conflicts", succeeded, conflicted)
	}
	if created := sink.named("PoolCreated"); len(created) != 1 {
		t.Fatalf("expected 1 PoolCreated event, got %d", len(created))
	}
}

func TestAliasedInvocationRejected(t *testing.T) {
	registry, sink := newTestRegistry(t)
	before := registry.Snapshot()
	foreign := common.HexToAddress("0x4444444444444444444444444444444444444444")
	ctx := guard.WithInvocationTarget(context.Background(), foreign)

	if _, err := registry.CreatePool(ctx, testOwner, tokenX, tokenX, 500); !errors.Is(err, guard.ErrAliasedInvocation) {
		t.Fatalf("create pool: expected ErrAliasedInvocation, got %v", err)
	}
	if err := registry.EnableFeeTier(ctx, testOwner, 2500, 50); !errors.Is(err, guard.ErrAliasedInvocation) {
		t.Fatalf("enable fee tier: expected ErrAliasedInvocation, got %v", err)
	}
	if err := registry.TransferOwnership(ctx, testOwner, foreign); !errors.Is(err, guard.ErrAliasedInvocation) {
		t.Fatalf("transfer ownership: expected ErrAliasedInvocation, got %v", err)
	}

	if !reflect.DeepEqual(before, registry.Snapshot()) {
		t.Fatalf("aliased invocations mutated state")
	}
	if len(sink.events) != 4 {
		t.Fatalf("aliased invocations emitted events")
	}

	direct := guard.WithInvocationTarget(context.Background(), testIdentity)
	if _, err := registry.CreatePool(direct, testOwner, tokenX, tokenY, 500); err != nil {
		t.Fatalf("matching target rejected: %v", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.EnableFeeTier(ctx, testOwner, 2500, 50); err != nil {
		t.Fatalf("enable fee tier: %v", err)
	}
	pool, err := registry.CreatePool(ctx, testOwner, tokenX, tokenY, 2500)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	snap := registry.Snapshot()
	sink := &recordingSink{}
	restored, err := Restore(testIdentity, snap, deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash}, sink)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.Owner() != testOwner {
		t.Fatalf("restored owner mismatch")
	}
	if got, ok := restored.LookupPool(tokenY, tokenX, 2500); !ok || got != pool {
		t.Fatalf("restored lookup mismatch: %s", got.Hex())
	}
	if _, err := restored.CreatePool(ctx, testOwner, tokenX, tokenY, 2500); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("restored registry lost uniqueness: %v", err)
	}

	if err := restored.EnableFeeTier(ctx, testOwner, 7500, 150); err != nil {
		t.Fatalf("enable on restored: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Seq != snap.LastSeq+1 {
		t.Fatalf("sequence not continued: %+v", sink.events)
	}

	if !reflect.DeepEqual(snap, registry.Snapshot()) {
		t.Fatalf("snapshot of source registry changed")
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	registry, _ := newTestRegistry(t)
	pool, err := registry.CreatePool(context.Background(), testOwner, tokenX, tokenY, 500)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	base := registry.Snapshot()
	deployer := deploy.Create2Deployer{InitCodeHash: deploy.DefaultInitCodeHash}

	cases := []struct {
		name   string
		mutate func(snap *model.RegistrySnapshot)
	}{
		{"bad owner", func(snap *model.RegistrySnapshot) { snap.Owner = "not-an-address" }},
		{"zero owner", func(snap *model.RegistrySnapshot) { snap.Owner = (common.Address{}).Hex() }},
		{"fee out of range", func(snap *model.RegistrySnapshot) {
			snap.FeeTiers = append(snap.FeeTiers, model.FeeTier{Fee: MaxFee, TickSpacing: 10})
		}},
		{"spacing out of range", func(snap *model.RegistrySnapshot) {
			snap.FeeTiers = append(snap.FeeTiers, model.FeeTier{Fee: 100, TickSpacing: MaxTickSpacing})
		}},
		{"duplicate tier", func(snap *model.RegistrySnapshot) {
			snap.FeeTiers = append(snap.FeeTiers, model.FeeTier{Fee: 500, TickSpacing: 20})
		}},
		{"unknown pool fee", func(snap *model.RegistrySnapshot) { snap.Pools[0].Fee = 1234 }},
		{"spacing mismatch", func(snap *model.RegistrySnapshot) { snap.Pools[0].TickSpacing = 60 }},
		{"non-canonical tokens", func(snap *model.RegistrySnapshot) {
			snap.Pools[0].Token0, snap.Pools[0].Token1 = snap.Pools[0].Token1, snap.Pools[0].Token0
		}},
		{"duplicate pool", func(snap *model.RegistrySnapshot) {
			snap.Pools = append(snap.Pools, snap.Pools[0])
		}},
		{"zero pool address", func(snap *model.RegistrySnapshot) { snap.Pools[0].Pool = (common.Address{}).Hex() }},
	}

	for _, tc := range cases {
		snap := base
		snap.FeeTiers = append([]model.FeeTier(nil), base.FeeTiers...)
		snap.Pools = append([]model.PoolRecord(nil), base.Pools...)
		tc.mutate(&snap)
		if _, err := Restore(testIdentity, snap, deployer, nil); err == nil {
			t.Fatalf("%s: corrupt snapshot accepted", tc.name)
		}
	}

	restored, err := Restore(testIdentity, base, deployer, nil)
	if err != nil {
		t.Fatalf("clean snapshot rejected: %v", err)
	}
	if got, ok := restored.LookupPool(tokenX, tokenY, 500); !ok || got != pool {
		t.Fatalf("clean restore lost the pool")
	}
}

func TestSortTokens(t *testing.T) {
	low, high := SortTokens(tokenY, tokenX)
	if low != tokenX || high != tokenY {
		t.Fatalf("sort mismatch: %s %s", low.Hex(), high.Hex())
	}
	low, high = SortTokens(tokenX, tokenY)
	if low != tokenX || high != tokenY {
		t.Fatalf("sorted input reordered: %s %s", low.Hex(), high.Hex())
	}
}
