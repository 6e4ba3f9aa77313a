package store

import (
	"context"
	"time"
)

// EntryRecord 为一次成交的网格开仓。
type EntryRecord struct {
	Time       time.Time
	Symbol     string
	PositionID string
	OrderID    string
	Step       int
	Lot        float64
	Price      float64
	Regime     string
	Verdict    any
}

// CloseRecord 为一次整篮平仓。
type CloseRecord struct {
	Time   time.Time
	Symbol string
	Reason string
	PnL    float64
	Count  int
	Volume float64
	Failed int
}

// RiskEventRecord 为风控触发的熔断或暂停。
type RiskEventRecord struct {
	Time        time.Time
	Kind        string
	Action      string
	Reason      string
	Equity      float64
	FloatingPnL float64
}

// Store 记录交易历史。写入失败由调用方记录日志，不影响交易流程。
type Store interface {
	RecordEntry(ctx context.Context, rec EntryRecord) error
	RecordClose(ctx context.Context, rec CloseRecord) error
	RecordRiskEvent(ctx context.Context, rec RiskEventRecord) error
	ListEntries(ctx context.Context, limit int) ([]EntryRecord, error)
	ListCloses(ctx context.Context, limit int) ([]CloseRecord, error)
	ListRiskEvents(ctx context.Context, limit int) ([]RiskEventRecord, error)
	Close() error
}

// Nop 丢弃所有写入，用于 store.enabled=false。
type Nop struct{}

func (Nop) RecordEntry(context.Context, EntryRecord) error                 { return nil }
func (Nop) RecordClose(context.Context, CloseRecord) error                 { return nil }
func (Nop) RecordRiskEvent(context.Context, RiskEventRecord) error         { return nil }
func (Nop) ListEntries(context.Context, int) ([]EntryRecord, error)        { return nil, nil }
func (Nop) ListCloses(context.Context, int) ([]CloseRecord, error)         { return nil, nil }
func (Nop) ListRiskEvents(context.Context, int) ([]RiskEventRecord, error) { return nil, nil }
func (Nop) Close() error                                                   { return nil }
