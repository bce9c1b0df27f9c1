package confirmation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bithomp/signing-sdk-go/client"
	"github.com/bithomp/signing-sdk-go/types"
)

// fakeLedgerClient 按预置序列应答交易查询与索引查询
type fakeLedgerClient struct {
	client.Client

	mu        sync.Mutex
	txCalls   int
	lookups   []*types.TxLookup
	idxCalls  int
	positions []uint32
}

func (f *fakeLedgerClient) GetTransaction(ctx context.Context, hash string) (*types.TxLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txCalls >= len(f.lookups) {
		return f.lookups[len(f.lookups)-1], nil
	}
	lookup := f.lookups[f.txCalls]
	f.txCalls++
	if lookup == nil {
		return nil, fmt.Errorf("lookup unavailable")
	}
	return lookup, nil
}

func (f *fakeLedgerClient) GetIndexStatus(ctx context.Context) (*types.IndexStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos := f.positions[len(f.positions)-1]
	if f.idxCalls < len(f.positions) {
		pos = f.positions[f.idxCalls]
	}
	f.idxCalls++
	return &types.IndexStatus{LedgerIndex: pos}, nil
}

func fastConfig() *Config {
	return &Config{
		TxInterval:      time.Millisecond,
		TxMaxAttempts:   5,
		TxMaxElapsed:    time.Second,
		IndexInterval:   time.Millisecond,
		IndexStallLimit: 4,
		LagThreshold:    1000,
	}
}

func TestNeedsConfirmation(t *testing.T) {
	e := NewService(&fakeLedgerClient{}, fastConfig())

	if !e.NeedsConfirmation("NFTokenMint") {
		t.Error("NFTokenMint should require confirmation")
	}
	if e.NeedsConfirmation("Payment") {
		t.Error("Payment should not require confirmation")
	}
}

func TestConfirmValidatedSecondAttemptIndexCaughtUp(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups: []*types.TxLookup{
			{Validated: false},
			{Validated: true, LedgerIndex: 100},
		},
		positions: []uint32{100},
	}
	e := NewService(fake, fastConfig())

	result, err := e.Confirm(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if !result.Validated || result.LedgerIndex != 100 {
		t.Errorf("result = %+v", result)
	}
	if !result.Indexed || result.Delayed {
		t.Errorf("result = %+v, want indexed and not delayed", result)
	}
	if result.TxAttempts != 2 {
		t.Errorf("tx attempts = %d, want 2", result.TxAttempts)
	}
	if fake.txCalls != 2 {
		t.Errorf("tx lookups = %d, want exactly 2", fake.txCalls)
	}
}

func TestConfirmNeverValidatedGivesUpNonFatally(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups: []*types.TxLookup{{Validated: false}},
	}
	e := NewService(fake, fastConfig())

	result, err := e.Confirm(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if !result.Delayed {
		t.Error("expected delayed result")
	}
	if result.Validated || result.Indexed {
		t.Errorf("result = %+v", result)
	}
	if result.TxAttempts != 5 {
		t.Errorf("tx attempts = %d, want ceiling of 5", result.TxAttempts)
	}
	// 索引阶段不应执行
	if fake.idxCalls != 0 {
		t.Errorf("index polled %d times without a validated tx", fake.idxCalls)
	}
}

func TestConfirmIndexCatchUp(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups:   []*types.TxLookup{{Validated: true, LedgerIndex: 100}},
		positions: []uint32{97, 98, 99, 100},
	}
	e := NewService(fake, fastConfig())

	result, err := e.Confirm(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if !result.Indexed || result.Delayed {
		t.Errorf("result = %+v", result)
	}
	if result.IndexAttempts != 4 {
		t.Errorf("index attempts = %d, want 4", result.IndexAttempts)
	}
}

func TestConfirmStalledIndexFinalizesAnyway(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups:   []*types.TxLookup{{Validated: true, LedgerIndex: 100}},
		positions: []uint32{90},
	}
	e := NewService(fake, fastConfig())

	result, err := e.Confirm(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if result.Indexed {
		t.Error("index never caught up but marked indexed")
	}
	if !result.Delayed {
		t.Error("expected delayed result after stall")
	}
	if !result.Validated {
		t.Error("validation result lost")
	}
}

func TestConfirmHugeLagFinalizesImmediately(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups:   []*types.TxLookup{{Validated: true, LedgerIndex: 10000}},
		positions: []uint32{1},
	}
	e := NewService(fake, fastConfig())

	result, err := e.Confirm(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if result.IndexAttempts != 1 {
		t.Errorf("index attempts = %d, want 1", result.IndexAttempts)
	}
	if result.Delayed {
		t.Error("huge lag finalization should not be delayed")
	}
}

func TestConfirmContextCancellation(t *testing.T) {
	fake := &fakeLedgerClient{
		lookups: []*types.TxLookup{{Validated: false}},
	}
	cfg := fastConfig()
	cfg.TxInterval = 50 * time.Millisecond
	e := NewService(fake, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	if _, err := e.Confirm(ctx, "ABCD"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestConfirmEmptyHash(t *testing.T) {
	e := NewService(&fakeLedgerClient{}, fastConfig())
	if _, err := e.Confirm(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty hash")
	}
}
