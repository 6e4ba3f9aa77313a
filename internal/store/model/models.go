package model

import (
	"time"

	"gorm.io/datatypes"
)

type EntryModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;index"`
	PositionID    string         `gorm:"column:position_id"`
	OrderID       string         `gorm:"column:order_id"`
	Step          int            `gorm:"column:step"`
	Lot           float64        `gorm:"column:lot"`
	Price         float64        `gorm:"column:price"`
	Regime        string         `gorm:"column:regime"`
	VerdictJSON   datatypes.JSON `gorm:"column:verdict_json;type:TEXT"`
	Timestamp     int64          `gorm:"column:timestamp;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`

	CreatedAt time.Time `gorm:"-"`
}

func (EntryModel) TableName() string { return "entries" }

type BasketCloseModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Symbol        string  `gorm:"column:symbol;index"`
	Reason        string  `gorm:"column:reason"`
	PnL           float64 `gorm:"column:pnl"`
	Count         int     `gorm:"column:count"`
	Volume        float64 `gorm:"column:volume"`
	Failed        int     `gorm:"column:failed"`
	Timestamp     int64   `gorm:"column:timestamp;index"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (BasketCloseModel) TableName() string { return "basket_closes" }

type RiskEventModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Kind          string  `gorm:"column:kind;index"`
	Action        string  `gorm:"column:action"`
	Reason        string  `gorm:"column:reason"`
	Equity        float64 `gorm:"column:equity"`
	FloatingPnL   float64 `gorm:"column:floating_pnl"`
	Timestamp     int64   `gorm:"column:timestamp;index"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (RiskEventModel) TableName() string { return "risk_events" }
