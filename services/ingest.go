package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crowdgauge/crowdgauge/metrics"
	"github.com/crowdgauge/crowdgauge/models"
	"github.com/crowdgauge/crowdgauge/utils"
)

// IngestService applies sensor pulses to site counters. All counter mutation
// in the application goes through ProcessPulse.
type IngestService struct {
	db     *gorm.DB
	ledger *Ledger
	// now is swappable so tests can cross day boundaries.
	now func() time.Time
}

// NewIngestService creates an IngestService bound to the given database.
func NewIngestService(db *gorm.DB) *IngestService {
	return &IngestService{db: db, ledger: NewLedger(db), now: time.Now}
}

// Ledger exposes the service's ledger for read-side consumers.
func (s *IngestService) Ledger() *Ledger {
	return s.ledger
}

// ProcessPulse validates and applies one sensor pulse, returning the resulting
// live count as the sensor acknowledgment.
//
// The counter update runs in a transaction that locks the site's counter row,
// so concurrent pulses for the same device serialize: the rollover check and
// the read-modify-write of the counts never interleave. The ledger append
// happens after commit and is best-effort; a failed append is surfaced in logs
// and metrics but never rolls back an already-confirmed counter update.
func (s *IngestService) ProcessPulse(deviceID string, entries, exits int) (int, error) {
	if strings.TrimSpace(deviceID) == "" || entries < 0 || exits < 0 {
		metrics.PulsesRejected.WithLabelValues("invalid_payload").Inc()
		return 0, ErrInvalidPayload
	}

	now := s.now()
	var newCount int
	var siteID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var site models.Site
		if err := tx.Where("sensor_device_id = ?", deviceID).First(&site).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownDevice
			}
			return fmt.Errorf("load site: %w", err)
		}
		siteID = site.ID

		var state models.CounterState
		err := lockForUpdate(tx).
			Where("site_id = ?", site.ID).First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Sites created before counter rows were split out may lack one.
			state = models.CounterState{SiteID: site.ID}
		} else if err != nil {
			return fmt.Errorf("load counter state: %w", err)
		}

		if rolloverDay(&state, now) {
			metrics.Rollovers.Inc()
		}

		// Clamp per update: a sensor glitch reporting extra exits must never
		// drive the display count negative, and the deficit is not remembered.
		newCount = state.CurrentCount + entries - exits
		if newCount < 0 {
			newCount = 0
		}
		state.CurrentCount = newCount
		if entries > 0 {
			state.TodayVisits += entries
		}

		if err := tx.Save(&state).Error; err != nil {
			return fmt.Errorf("save counter state: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownDevice) {
			metrics.PulsesRejected.WithLabelValues("unknown_device").Inc()
		} else {
			metrics.PulsesRejected.WithLabelValues("storage").Inc()
		}
		return 0, err
	}

	if entries > 0 {
		if err := s.ledger.Append(siteID, models.ActionEntry, entries, now); err != nil {
			logLedgerFailure(deviceID, err)
		}
	}
	if exits > 0 {
		if err := s.ledger.Append(siteID, models.ActionExit, exits, now); err != nil {
			logLedgerFailure(deviceID, err)
		}
	}

	metrics.PulsesAccepted.Inc()
	return newCount, nil
}

func logLedgerFailure(deviceID string, err error) {
	metrics.LedgerAppendFailures.Inc()
	if utils.Sugar != nil {
		utils.Sugar.Warnf("footfall ledger append failed device=%s err=%v", deviceID, err)
	}
}

// lockForUpdate takes a row lock on dialects that support it. The SQLite
// used in tests has a single writer and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// rolloverDay archives today's tally into yesterday's on the first pulse of a
// new calendar day and reports whether a rollover happened. CurrentCount is
// untouched: people inside at midnight are still inside. After a multi-day
// gap a single step still runs; skipped days are not back-filled with zeroes.
func rolloverDay(state *models.CounterState, now time.Time) bool {
	// A zero date means no previous day exists yet; stamp it without
	// archiving so the first pulse ever is not reported as a rollover.
	if state.LastResetDate.IsZero() {
		state.LastResetDate = localMidnight(now)
		return false
	}
	if sameDay(state.LastResetDate, now) {
		return false
	}
	state.YesterdayVisits = state.TodayVisits
	state.TodayVisits = 0
	state.LastResetDate = localMidnight(now)
	return true
}

// RolloverView returns the counter state as it would look after the lazy
// daily rollover, without persisting anything. Reads use it so a dashboard
// opened before the day's first pulse still shows archived visit counts.
func RolloverView(state models.CounterState, now time.Time) models.CounterState {
	rolloverDay(&state, now)
	return state
}

// Day boundaries are calendar days in the process-local timezone, the
// canonical timezone for the deployment. A pulse at 23:59 and one at 00:01
// cross the boundary; two pulses 20 hours apart on the same day do not.
func sameDay(a, b time.Time) bool {
	a, b = a.In(time.Local), b.In(time.Local)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func localMidnight(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
