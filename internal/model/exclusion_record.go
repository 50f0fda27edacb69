package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExclusionRecord is one persisted registry entry. Record holds the compact
// array form, the other columns are kept for querying.
type ExclusionRecord struct {
	ID           uint           `gorm:"primaryKey"`
	StrategyKey  string         `gorm:"column:strategy_key;type:varchar(128);not null;index"`
	Scope        int            `gorm:"column:scope;not null"`
	DropoutCount int            `gorm:"column:dropout_count;not null;default:0"`
	Record       datatypes.JSON `gorm:"column:record;type:jsonb;not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
}

func (ExclusionRecord) TableName() string {
	return "exclusion_records"
}
