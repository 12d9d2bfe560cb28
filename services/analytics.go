package services

import (
	"fmt"
	"time"
)

// HourBucket is one row of the operator's hourly visit chart.
type HourBucket struct {
	Hour     string `json:"hour"`
	Visitors int64  `json:"visitors"`
}

// HourlyBreakdown composes the ledger into the 24-bucket chart for the
// calendar day containing `now`. It performs no mutation and is safe to call
// concurrently with ingestion; a pulse landing mid-read may or may not be
// reflected.
func HourlyBreakdown(ledger *Ledger, siteID uint, now time.Time) ([]HourBucket, error) {
	counts, err := ledger.EntriesByHour(siteID, now)
	if err != nil {
		return nil, err
	}

	out := make([]HourBucket, len(counts))
	for h, n := range counts {
		out[h] = HourBucket{Hour: fmt.Sprintf("%d:00", h), Visitors: n}
	}
	return out, nil
}
