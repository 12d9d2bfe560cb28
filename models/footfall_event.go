package models

import "time"

// Footfall event actions.
const (
	ActionEntry = "entry"
	ActionExit  = "exit"
)

// FootfallEvent is one append-only ledger record. A pulse produces at most
// one entry event and one exit event, each carrying the direction's count.
// Events are never updated or deleted by the application; retention is an
// operational concern.
type FootfallEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SiteID    uint      `gorm:"index:idx_ff_site_action_ts;not null" json:"site_id"`
	Action    string    `gorm:"size:8;index:idx_ff_site_action_ts;not null" json:"action"`
	Count     int       `gorm:"not null;default:1" json:"count"`
	Timestamp time.Time `gorm:"index:idx_ff_site_action_ts;not null" json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
