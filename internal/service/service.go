package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"poolFactory/internal/deploy"
	"poolFactory/internal/eventlog"
	"poolFactory/internal/factory"
	"poolFactory/internal/journal"
	"poolFactory/internal/model"
	"poolFactory/internal/snapshot"
)

// lockRetryDelay paces lock acquisition attempts when another process holds
// the registry state.
const lockRetryDelay = 25 * time.Millisecond

// Config holds the fixed identity of the registry instance.
type Config struct {
	RegistryAddress common.Address
	InitCodeHash    common.Hash
}

// Service owns the registry state on disk. Each call takes an exclusive file
// lock, loads the snapshot, applies one operation against a restored
// registry, appends the emitted events to the journal, and saves the snapshot
// back. Failed operations leave the saved state untouched: journal records
// from a commit that never reached the snapshot are dropped on the next load.
type Service struct {
	cfg       Config
	journal   journal.Journal
	snapshots *snapshot.Store
	lockPath  string
	encoder   *eventlog.FactoryEncoder
	logger    *zap.Logger
}

// NewService builds a Service with its dependencies.
func NewService(cfg Config, jrnl journal.Journal, snapshots *snapshot.Store, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitCodeHash == (common.Hash{}) {
		cfg.InitCodeHash = deploy.DefaultInitCodeHash
	}
	encoder, err := eventlog.NewFactoryEncoder()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		journal:   jrnl,
		snapshots: snapshots,
		lockPath:  snapshots.Path() + ".lock",
		encoder:   encoder,
		logger:    logger,
	}, nil
}

// memorySink buffers events emitted during a single operation.
type memorySink struct {
	events []model.Event
}

func (m *memorySink) Emit(event model.Event) {
	m.events = append(m.events, event)
}

// registryState is one loaded copy of the persisted registry.
type registryState struct {
	reg  *factory.Registry
	sink *memorySink
	snap model.RegistrySnapshot
}

// Init creates the registry with owner and the built-in fee tiers. It fails
// if registry state already exists.
func (s *Service) Init(owner common.Address) error {
	unlock, err := s.lockState(context.Background())
	if err != nil {
		return err
	}
	defer unlock()

	_, ok, err := s.snapshots.Load()
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("registry state already exists")
	}
	if err := s.reconcile(0); err != nil {
		return err
	}

	sink := &memorySink{}
	reg, err := factory.NewRegistry(s.cfg.RegistryAddress, owner, s.deployer(), sink)
	if err != nil {
		return err
	}
	if err := s.commit(reg, sink.events); err != nil {
		return err
	}

	s.logger.Info("init complete",
		zap.String("registry", s.cfg.RegistryAddress.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Int("events", len(sink.events)),
	)
	return nil
}

// CreatePool deploys and records the pool for the pair and fee.
func (s *Service) CreatePool(ctx context.Context, caller, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	unlock, err := s.lockState(ctx)
	if err != nil {
		return common.Address{}, err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return common.Address{}, err
	}

	pool, err := state.reg.CreatePool(ctx, caller, tokenA, tokenB, fee)
	if err != nil {
		return common.Address{}, err
	}
	if err := s.commit(state.reg, state.sink.events); err != nil {
		return common.Address{}, err
	}

	s.logger.Info("pool created",
		zap.String("pool", pool.Hex()),
		zap.Uint32("fee", fee),
	)
	return pool, nil
}

// EnableFeeTier whitelists a fee with its tick spacing. Owner only.
func (s *Service) EnableFeeTier(ctx context.Context, caller common.Address, fee uint32, tickSpacing int32) error {
	unlock, err := s.lockState(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	if err := state.reg.EnableFeeTier(ctx, caller, fee, tickSpacing); err != nil {
		return err
	}
	if err := s.commit(state.reg, state.sink.events); err != nil {
		return err
	}

	s.logger.Info("fee tier enabled",
		zap.Uint32("fee", fee),
		zap.Int32("tick_spacing", tickSpacing),
	)
	return nil
}

// TransferOwner hands the owner role to newOwner. Owner only.
func (s *Service) TransferOwner(ctx context.Context, caller, newOwner common.Address) error {
	unlock, err := s.lockState(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	if err := state.reg.TransferOwnership(ctx, caller, newOwner); err != nil {
		return err
	}
	if err := s.commit(state.reg, state.sink.events); err != nil {
		return err
	}

	s.logger.Info("owner transferred",
		zap.String("new_owner", newOwner.Hex()),
	)
	return nil
}

// LookupPool returns the recorded pool for a pair and fee.
func (s *Service) LookupPool(tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	unlock, err := s.lockState(context.Background())
	if err != nil {
		return common.Address{}, false, err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return common.Address{}, false, err
	}
	pool, ok := state.reg.LookupPool(tokenA, tokenB, fee)
	return pool, ok, nil
}

// LookupFeeTier returns the tick spacing for an enabled fee.
func (s *Service) LookupFeeTier(fee uint32) (int32, bool, error) {
	unlock, err := s.lockState(context.Background())
	if err != nil {
		return 0, false, err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return 0, false, err
	}
	tickSpacing, ok := state.reg.LookupFeeTier(fee)
	return tickSpacing, ok, nil
}

// State returns the stored snapshot after re-validating it, including the
// time it was saved.
func (s *Service) State() (model.RegistrySnapshot, error) {
	unlock, err := s.lockState(context.Background())
	if err != nil {
		return model.RegistrySnapshot{}, err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return model.RegistrySnapshot{}, err
	}
	return state.snap, nil
}

func (s *Service) deployer() deploy.Deployer {
	return deploy.Create2Deployer{InitCodeHash: s.cfg.InitCodeHash}
}

// lockState serializes registry operations across processes with an
// exclusive lock file next to the snapshot. Acquisition retries until the
// lock is free or ctx is cancelled.
func (s *Service) lockState(ctx context.Context) (func(), error) {
	dir := filepath.Dir(s.lockPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	lock := flock.New(s.lockPath)
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("lock registry state: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

// reconcile drops journal records past lastSeq. They can only come from a
// commit that appended but never saved, so their operation never happened.
func (s *Service) reconcile(lastSeq uint64) error {
	dropped, err := s.journal.DropAfter(lastSeq)
	if err != nil {
		return fmt.Errorf("reconcile journal: %w", err)
	}
	if dropped > 0 {
		s.logger.Warn("dropped journal records from an interrupted commit",
			zap.Int("records", dropped),
			zap.Uint64("last_seq", lastSeq),
		)
	}
	return nil
}

func (s *Service) load() (*registryState, error) {
	snap, ok, err := s.snapshots.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("registry state not found: run init first")
	}

	if err := s.reconcile(snap.LastSeq); err != nil {
		return nil, err
	}

	sink := &memorySink{}
	reg, err := factory.Restore(s.cfg.RegistryAddress, snap, s.deployer(), sink)
	if err != nil {
		return nil, fmt.Errorf("restore registry: %w", err)
	}
	return &registryState{reg: reg, sink: sink, snap: snap}, nil
}

func (s *Service) commit(reg *factory.Registry, events []model.Event) error {
	emittedAt := time.Now().UTC()
	records := make([]model.EventRecord, 0, len(events))
	for _, event := range events {
		record, err := s.encoder.Encode(event, emittedAt)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", event.Seq, err)
		}
		records = append(records, record)
	}

	if err := s.journal.AppendEvents(records); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	if err := s.snapshots.Save(reg.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
