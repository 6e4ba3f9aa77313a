package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gridbot/internal/store"
	storemodel "gridbot/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxListLimit = 500

// GormStore 基于 Gorm + SQLite 保存开仓、平仓与风控事件。
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*GormStore)(nil)

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.EntryModel{},
		&storemodel.BasketCloseModel{},
		&storemodel.RiskEventModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 写入只来自两个交易循环，HTTP 只读。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	return s.db.DB()
}

func (s *GormStore) RecordEntry(ctx context.Context, rec store.EntryRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	var verdict datatypes.JSON
	if rec.Verdict != nil {
		raw, err := json.Marshal(rec.Verdict)
		if err != nil {
			return fmt.Errorf("marshal verdict: %w", err)
		}
		verdict = datatypes.JSON(raw)
	}
	m := storemodel.EntryModel{
		Symbol:        normalizeSymbol(rec.Symbol),
		PositionID:    rec.PositionID,
		OrderID:       rec.OrderID,
		Step:          rec.Step,
		Lot:           rec.Lot,
		Price:         rec.Price,
		Regime:        rec.Regime,
		VerdictJSON:   verdict,
		Timestamp:     s.stamp(rec.Time),
		CreatedAtUnix: s.now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) RecordClose(ctx context.Context, rec store.CloseRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	m := storemodel.BasketCloseModel{
		Symbol:        normalizeSymbol(rec.Symbol),
		Reason:        rec.Reason,
		PnL:           rec.PnL,
		Count:         rec.Count,
		Volume:        rec.Volume,
		Failed:        rec.Failed,
		Timestamp:     s.stamp(rec.Time),
		CreatedAtUnix: s.now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *GormStore) RecordRiskEvent(ctx context.Context, rec store.RiskEventRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	m := storemodel.RiskEventModel{
		Kind:          rec.Kind,
		Action:        rec.Action,
		Reason:        rec.Reason,
		Equity:        rec.Equity,
		FloatingPnL:   rec.FloatingPnL,
		Timestamp:     s.stamp(rec.Time),
		CreatedAtUnix: s.now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListEntries 按时间倒序返回最近的开仓记录。
func (s *GormStore) ListEntries(ctx context.Context, limit int) ([]store.EntryRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []storemodel.EntryModel
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.EntryRecord, 0, len(models))
	for _, m := range models {
		rec := store.EntryRecord{
			Time:       time.UnixMilli(m.Timestamp),
			Symbol:     m.Symbol,
			PositionID: m.PositionID,
			OrderID:    m.OrderID,
			Step:       m.Step,
			Lot:        m.Lot,
			Price:      m.Price,
			Regime:     m.Regime,
		}
		if len(m.VerdictJSON) > 0 {
			rec.Verdict = json.RawMessage(m.VerdictJSON)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) ListCloses(ctx context.Context, limit int) ([]store.CloseRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []storemodel.BasketCloseModel
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.CloseRecord, 0, len(models))
	for _, m := range models {
		out = append(out, store.CloseRecord{
			Time:   time.UnixMilli(m.Timestamp),
			Symbol: m.Symbol,
			Reason: m.Reason,
			PnL:    m.PnL,
			Count:  m.Count,
			Volume: m.Volume,
			Failed: m.Failed,
		})
	}
	return out, nil
}

func (s *GormStore) ListRiskEvents(ctx context.Context, limit int) ([]store.RiskEventRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []storemodel.RiskEventModel
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.RiskEventRecord, 0, len(models))
	for _, m := range models {
		out = append(out, store.RiskEventRecord{
			Time:        time.UnixMilli(m.Timestamp),
			Kind:        m.Kind,
			Action:      m.Action,
			Reason:      m.Reason,
			Equity:      m.Equity,
			FloatingPnL: m.FloatingPnL,
		})
	}
	return out, nil
}

func (s *GormStore) stamp(t time.Time) int64 {
	if t.IsZero() {
		t = s.now()
	}
	return t.UnixMilli()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return 100
	}
	return limit
}

func normalizeSymbol(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
