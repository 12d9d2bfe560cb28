package models

import "time"

// CounterState is the live occupancy record for one site. It is mutated only
// by pulse ingestion, always inside a transaction that locks the row, so the
// counts never go through a lost-update cycle.
type CounterState struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	SiteID          uint      `gorm:"uniqueIndex;not null" json:"-"`
	CurrentCount    int       `gorm:"not null;default:0" json:"current_count"`
	TodayVisits     int       `gorm:"not null;default:0" json:"today_visits"`
	YesterdayVisits int       `gorm:"not null;default:0" json:"yesterday_visits"`
	LastResetDate   time.Time `gorm:"type:date" json:"last_reset_date"`
	UpdatedAt       time.Time `json:"updated_at"`
}
