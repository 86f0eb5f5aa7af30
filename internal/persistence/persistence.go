// Package persistence implements the write-through durable mirror:
// save_order is idempotent, load_active_orders repopulates the
// in-memory store on startup. It is never authoritative for in-run state
// decisions — only the broker is, via reconciliation. Grounded on
// internal/database/database.go's gorm + sqlite/postgres driver
// selection. gorm logs through its own default logger at Warn level.
package persistence

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
)

// OrderRecord is the gorm model mirroring an orders.Order. Storage format is
// opaque to the rest of the core; only this package reads or
// writes it.
type OrderRecord struct {
	ClientOrderID  string `gorm:"primaryKey"`
	BrokerOrderID  string `gorm:"index"`
	Symbol         string
	InstrumentKind int
	Side           string
	Type           string
	TIF            string
	Purpose        string
	RequestedQty   decimal.Decimal `gorm:"type:decimal(20,8)"`
	LimitPrice     decimal.Decimal `gorm:"type:decimal(20,8)"`
	StopPrice      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Status         string          `gorm:"index"`
	FilledQty      decimal.Decimal `gorm:"type:decimal(20,8)"`
	AvgFillPrice   decimal.Decimal `gorm:"type:decimal(20,8)"`
	RejectReason   string
	CreatedAt      time.Time
	AcceptedAt     time.Time
	UpdatedAt      time.Time
}

// Store is the gorm-backed durable mirror.
type Store struct {
	db *gorm.DB
}

// Driver selects the gorm dialector, matching dual driver
// support (sqlite for local/dev, postgres for production).
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open connects using dsn under the given driver and migrates the schema.
func Open(driver Driver, dsn string) (*Store, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("driver", string(driver)).Msg("persistence store opened")
	return &Store{db: db}, nil
}

func toRecord(o orders.Order) OrderRecord {
	return OrderRecord{
		ClientOrderID:  string(o.ClientOrderId),
		BrokerOrderID:  string(o.BrokerOrderId),
		Symbol:         string(o.Symbol),
		InstrumentKind: int(o.InstrumentKind),
		Side:           string(o.Side),
		Type:           string(o.Type),
		TIF:            string(o.TIF),
		Purpose:        string(o.Purpose),
		RequestedQty:   o.RequestedQty,
		LimitPrice:     o.LimitPrice,
		StopPrice:      o.StopPrice,
		Status:         string(o.Status),
		FilledQty:      o.FilledQty,
		AvgFillPrice:   o.AvgFillPrice,
		RejectReason:   o.RejectReason,
		CreatedAt:      o.CreatedAt,
		AcceptedAt:     o.AcceptedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// SaveOrder upserts the order record, keyed by client id (idempotent).
func (s *Store) SaveOrder(o orders.Order) error {
	rec := toRecord(o)
	return s.db.Save(&rec).Error
}

// LoadActiveOrders returns every persisted record whose status is
// non-terminal, for the caller to rehydrate into the in-memory store.
func (s *Store) LoadActiveOrders() ([]OrderRecord, error) {
	var recs []OrderRecord
	terminal := []string{
		string(orders.StatusFilled),
		string(orders.StatusCanceled),
		string(orders.StatusRejected),
		string(orders.StatusExpired),
	}
	if err := s.db.Where("status NOT IN ?", terminal).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load active orders: %w", err)
	}
	return recs, nil
}

// Rehydrate converts a record back into an *orders.Order suitable for
// reinserting into the in-memory store.
func Rehydrate(rec OrderRecord) *orders.Order {
	o := &orders.Order{
		ClientOrderId:  money.ClientOrderId(rec.ClientOrderID),
		BrokerOrderId:  money.BrokerOrderId(rec.BrokerOrderID),
		Symbol:         money.Symbol(rec.Symbol),
		InstrumentKind: money.InstrumentKind(rec.InstrumentKind),
		Side:           orders.Side(rec.Side),
		Type:           orders.Type(rec.Type),
		TIF:            orders.TIF(rec.TIF),
		Purpose:        orders.Purpose(rec.Purpose),
		RequestedQty:   rec.RequestedQty,
		LimitPrice:     rec.LimitPrice,
		StopPrice:      rec.StopPrice,
		Status:         orders.Status(rec.Status),
		FilledQty:      rec.FilledQty,
		AvgFillPrice:   rec.AvgFillPrice,
		RejectReason:   rec.RejectReason,
		CreatedAt:      rec.CreatedAt,
		AcceptedAt:     rec.AcceptedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	o.ResetFillDedup()
	return o
}
