package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/crowdgauge/crowdgauge/models"
)

// Ledger is the append-only footfall event store. Records are written once
// and only ever read back for aggregation.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger bound to the given database.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records one direction of a pulse at the given instant. The caller
// decides whether a failure is fatal.
func (l *Ledger) Append(siteID uint, action string, count int, ts time.Time) error {
	if count <= 0 {
		return nil
	}
	ev := models.FootfallEvent{SiteID: siteID, Action: action, Count: count, Timestamp: ts}
	if err := l.db.Create(&ev).Error; err != nil {
		return fmt.Errorf("append footfall event: %w", err)
	}
	return nil
}

// EntriesByHour sums entry-event counts per hour of the calendar day that
// contains `day`, local time. The result always has 24 buckets in ascending
// hour order; hours without events stay zero.
func (l *Ledger) EntriesByHour(siteID uint, day time.Time) ([24]int64, error) {
	var buckets [24]int64

	start := localMidnight(day)
	end := start.Add(24 * time.Hour)

	var events []models.FootfallEvent
	if err := l.db.
		Where("site_id = ? AND action = ? AND timestamp >= ? AND timestamp < ?",
			siteID, models.ActionEntry, start, end).
		Find(&events).Error; err != nil {
		return buckets, fmt.Errorf("query footfall events: %w", err)
	}

	// Bucket in Go rather than SQL so the query stays portable between MySQL
	// and the SQLite used in tests.
	for _, ev := range events {
		buckets[ev.Timestamp.In(time.Local).Hour()] += int64(ev.Count)
	}
	return buckets, nil
}
