package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poolFactory/internal/eventlog"
	"poolFactory/internal/journal"
	"poolFactory/internal/journal/postgres"
	"poolFactory/internal/model"
)

// Config controls mirroring behavior.
type Config struct {
	BatchSize    int
	FromSeq      uint64
	StateStore   StateStore
	MaxRetries   int
	RetryBackoff time.Duration
}

// Mirror replays the event journal into Postgres. Events land in
// factory_events; PoolCreated and FeeAmountEnabled additionally feed the
// pools and fee_tiers projections. All writes skip conflicts, so replaying
// the same journal is safe.
type Mirror struct {
	cfg     Config
	store   *postgres.Store
	decoder *eventlog.FactoryDecoder
	logger  *zap.Logger
}

func NewMirror(cfg Config, store *postgres.Store, logger *zap.Logger) (*Mirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := eventlog.NewFactoryDecoder()
	if err != nil {
		return nil, err
	}
	return &Mirror{
		cfg:     cfg,
		store:   store,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Run replays the journal at inputPath from the last synced sequence.
func (m *Mirror) Run(ctx context.Context, inputPath string) error {
	if m.store == nil {
		return fmt.Errorf("store is nil")
	}
	if m.cfg.BatchSize <= 0 {
		m.cfg.BatchSize = 1000
	}

	startSeq, err := m.loadStartSeq(ctx)
	if err != nil {
		return err
	}

	events := make([]model.EventRecord, 0, m.cfg.BatchSize)
	pools := make([]model.PoolRecord, 0, 64)
	tiers := make([]model.FeeTier, 0, 8)
	lastSeq := startSeq
	var total, synced, skipped, failed int

	err = journal.ScanLines(inputPath, func(line []byte) error {
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			m.logger.Warn("decode event record", zap.Error(err))
			return nil
		}

		if record.Seq <= startSeq {
			skipped++
			return nil
		}

		decoded, err := m.decoder.Decode(record)
		if err != nil {
			failed++
			m.logger.Warn("decode event", zap.Uint64("seq", record.Seq), zap.Error(err))
			return nil
		}

		pool, tier := project(decoded)
		if pool != nil {
			pools = append(pools, *pool)
		}
		if tier != nil {
			tiers = append(tiers, *tier)
		}

		events = append(events, record)
		if record.Seq > lastSeq {
			lastSeq = record.Seq
		}
		synced++

		if len(events) >= m.cfg.BatchSize {
			if err := m.flush(ctx, events, pools, tiers); err != nil {
				return err
			}
			events = events[:0]
			pools = pools[:0]
			tiers = tiers[:0]

			if err := m.saveState(ctx, lastSeq); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(events) > 0 || len(pools) > 0 || len(tiers) > 0 {
		if err := m.flush(ctx, events, pools, tiers); err != nil {
			return err
		}
	}
	if err := m.saveState(ctx, lastSeq); err != nil {
		return err
	}

	m.logger.Info("mirror complete",
		zap.Int("total", total),
		zap.Int("synced", synced),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Uint64("last_seq", lastSeq),
	)

	return nil
}

// project maps a decoded event to its table projection, if it has one.
func project(decoded *model.DecodedEvent) (*model.PoolRecord, *model.FeeTier) {
	switch payload := decoded.Decoded.(type) {
	case model.PoolCreatedEventData:
		return &model.PoolRecord{
			Token0:      payload.Token0,
			Token1:      payload.Token1,
			Fee:         payload.Fee,
			TickSpacing: payload.TickSpacing,
			Pool:        payload.Pool,
			CreatedSeq:  decoded.Seq,
		}, nil
	case model.FeeAmountEnabledEventData:
		return nil, &model.FeeTier{
			Fee:         payload.Fee,
			TickSpacing: payload.TickSpacing,
		}
	default:
		return nil, nil
	}
}

func (m *Mirror) loadStartSeq(ctx context.Context) (uint64, error) {
	if m.cfg.FromSeq > 0 {
		return m.cfg.FromSeq - 1, nil
	}
	if m.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := m.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (m *Mirror) saveState(ctx context.Context, seq uint64) error {
	if m.cfg.StateStore == nil {
		return nil
	}
	return m.cfg.StateStore.Save(ctx, seq)
}

func (m *Mirror) flush(ctx context.Context, events []model.EventRecord, pools []model.PoolRecord, tiers []model.FeeTier) error {
	return withRetry(ctx, m.cfg.MaxRetries, m.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := m.store.InsertEvents(ctx, events); err != nil {
			m.logger.Warn("insert events failed", zap.Error(err))
			return err
		}
		if err := m.store.InsertFeeTiers(ctx, tiers); err != nil {
			m.logger.Warn("insert fee tiers failed", zap.Error(err))
			return err
		}
		if err := m.store.InsertPools(ctx, pools); err != nil {
			m.logger.Warn("insert pools failed", zap.Error(err))
			return err
		}
		return nil
	})
}
