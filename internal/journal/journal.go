// Package journal persists closed trades as a side log. It is a sink for
// lifecycle events, never the source of truth for open-risk state: that
// lives in risk.Manager for the process lifetime.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ClosedTrade struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TradeID    string    `gorm:"column:trade_id;index"`
	Symbol     string    `gorm:"column:symbol"`
	Side       string    `gorm:"column:side"`
	Size       float64   `gorm:"column:size"`
	EntryPrice float64   `gorm:"column:entry_price"`
	PnL        float64   `gorm:"column:pnl"`
	ClosedAt   time.Time `gorm:"column:closed_at;index"`
}

func (ClosedTrade) TableName() string { return "closed_trades" }

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: creating directory failed: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: opening database failed: %w", err)
	}
	if err := db.AutoMigrate(&ClosedTrade{}); err != nil {
		return nil, fmt.Errorf("journal: migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordClosed(ctx context.Context, rec ClosedTrade) error {
	if rec.ClosedAt.IsZero() {
		rec.ClosedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Recent returns the newest closed trades, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ClosedTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ClosedTrade
	err := s.db.WithContext(ctx).
		Order("closed_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
