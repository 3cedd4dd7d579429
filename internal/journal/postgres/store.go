package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolFactory/internal/model"
)

// Store provides Postgres persistence for the event mirror.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertEvents appends event records. Records already mirrored are skipped,
// never rewritten; the journal is the source of truth.
func (s *Store) InsertEvents(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		emittedAt, err := time.Parse(time.RFC3339Nano, record.EmittedAt)
		if err != nil {
			return fmt.Errorf("event %d emitted_at: %w", record.Seq, err)
		}
		batch.Queue(`
			INSERT INTO factory_events (
				seq, name, topics, data, emitted_at, created_at
			) VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(record.Seq),
			record.Name,
			record.Topics,
			record.Data,
			emittedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertPools records pool projections. Pool records are immutable, so
// conflicts on the canonical key are skipped rather than updated.
func (s *Store) InsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				token0, token1, fee, tick_spacing, pool_address, created_seq, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (token0, token1, fee) DO NOTHING
		`,
			pool.Token0,
			pool.Token1,
			int64(pool.Fee),
			pool.TickSpacing,
			pool.Pool,
			int64(pool.CreatedSeq),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertFeeTiers records fee tier projections. A tier, once enabled, never
// changes, so conflicts are skipped.
func (s *Store) InsertFeeTiers(ctx context.Context, tiers []model.FeeTier) error {
	if len(tiers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tier := range tiers {
		batch.Queue(`
			INSERT INTO fee_tiers (fee, tick_spacing, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (fee) DO NOTHING
		`,
			int64(tier.Fee),
			tier.TickSpacing,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tiers {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_synced_seq for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq uint64
	row := s.pool.QueryRow(ctx, `SELECT last_synced_seq FROM mirror_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// SaveState upserts last_synced_seq for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mirror_state (name, last_synced_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_synced_seq = EXCLUDED.last_synced_seq, updated_at = now()
	`, name, seq)
	return err
}
