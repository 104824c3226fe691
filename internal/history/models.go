package history

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// ReactionRow is one validated reaction with the trigger context that
// produced it.
type ReactionRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_reactions_created,sort:desc;not null"`

	Reason      string `gorm:"index;not null"`
	AppName     string
	WindowTitle string
	Score       float64

	Mood       string `gorm:"index;not null"`
	Expression string `gorm:"not null"`
	Placement  string `gorm:"not null"`
	Message    string `gorm:"not null"`

	CPUPercent     int
	RAMPercent     int
	BatteryPercent sql.NullInt64
	SnapshotPath   sql.NullString
}

func (ReactionRow) TableName() string { return "reactions" }

// BeforeCreate hook to ensure timestamps are set.
func (r *ReactionRow) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAtEpoch == 0 {
		r.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}
