package mirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"poolFactory/internal/eventlog"
	"poolFactory/internal/model"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "mirror.json")}

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty load, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, 42); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	seq, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if seq != 42 {
		t.Fatalf("seq = %d, want 42", seq)
	}
}

func TestFileStateStoreEmptyPathIsNoop(t *testing.T) {
	ctx := context.Background()
	store := &FileStateStore{}

	if err := store.Save(ctx, 7); err != nil {
		t.Fatalf("save on empty path should be a no-op, got %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("load on empty path should report missing, got ok=%v err=%v", ok, err)
	}
}

func TestProjectPoolCreated(t *testing.T) {
	encoder, err := eventlog.NewFactoryEncoder()
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	decoder, err := eventlog.NewFactoryDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	payload := model.PoolCreatedEventData{
		Token0:      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Token1:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Fee:         500,
		TickSpacing: 10,
		Pool:        "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
	}
	record, err := encoder.Encode(model.Event{Seq: 9, Name: "PoolCreated", Data: payload}, time.Now().UTC())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	pool, tier := project(decoded)
	if tier != nil {
		t.Fatalf("unexpected fee tier projection: %+v", tier)
	}
	if pool == nil {
		t.Fatalf("expected pool projection")
	}
	if pool.CreatedSeq != 9 {
		t.Fatalf("created seq = %d, want 9", pool.CreatedSeq)
	}
	if pool.Token0 != payload.Token0 || pool.Token1 != payload.Token1 {
		t.Fatalf("token mismatch: %+v", pool)
	}
	if pool.Fee != 500 || pool.TickSpacing != 10 || pool.Pool != payload.Pool {
		t.Fatalf("pool mismatch: %+v", pool)
	}
}

func TestProjectFeeAmountEnabled(t *testing.T) {
	encoder, err := eventlog.NewFactoryEncoder()
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	decoder, err := eventlog.NewFactoryDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	record, err := encoder.Encode(model.Event{
		Seq:  3,
		Name: "FeeAmountEnabled",
		Data: model.FeeAmountEnabledEventData{Fee: 3000, TickSpacing: 60},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	pool, tier := project(decoded)
	if pool != nil {
		t.Fatalf("unexpected pool projection: %+v", pool)
	}
	if tier == nil || tier.Fee != 3000 || tier.TickSpacing != 60 {
		t.Fatalf("tier mismatch: %+v", tier)
	}
}

func TestProjectOwnerChangedHasNoProjection(t *testing.T) {
	encoder, err := eventlog.NewFactoryEncoder()
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	decoder, err := eventlog.NewFactoryDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	record, err := encoder.Encode(model.Event{
		Seq:  1,
		Name: "OwnerChanged",
		Data: model.OwnerChangedEventData{
			OldOwner: "0x0000000000000000000000000000000000000000",
			NewOwner: "0x00000000000000000000000000000000000000aa",
		},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	pool, tier := project(decoded)
	if pool != nil || tier != nil {
		t.Fatalf("OwnerChanged should project nothing, got pool=%+v tier=%+v", pool, tier)
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient %d", attempts)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("persistent")
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, time.Minute, func(ctx context.Context) error {
		return fmt.Errorf("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
