package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdgauge/crowdgauge/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestProcessPulseClampsAtEachStep(t *testing.T) {
	db := newTestDB(t)
	createSite(t, db, "dev-clamp", 100)
	svc := NewIngestService(db)

	// Exits with nobody inside must clamp to zero, not carry a deficit into
	// the next pulse.
	count, err := svc.ProcessPulse("dev-clamp", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = svc.ProcessPulse("dev-clamp", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestProcessPulseRejectsInvalidPayload(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-valid", 50)
	svc := NewIngestService(db)

	for _, tc := range []struct {
		name    string
		device  string
		entries int
		exits   int
	}{
		{"empty device", "", 1, 0},
		{"blank device", "   ", 1, 0},
		{"negative entries", "dev-valid", -1, 0},
		{"negative exits", "dev-valid", 0, -2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ProcessPulse(tc.device, tc.entries, tc.exits)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 0, state.CurrentCount)
	assert.Equal(t, 0, state.TodayVisits)
}

func TestProcessPulseRejectsUnknownDevice(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-known", 50)
	svc := NewIngestService(db)

	_, err := svc.ProcessPulse("dev-ghost", 1, 0)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	// The rejection must leave every counter untouched.
	state := counterFor(t, db, site.ID)
	assert.Equal(t, 0, state.CurrentCount)
	assert.Equal(t, 0, state.TodayVisits)
	assert.Equal(t, 0, state.YesterdayVisits)
}

func TestProcessPulseExitsDoNotReduceTodayVisits(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-exit", 50)
	svc := NewIngestService(db)

	_, err := svc.ProcessPulse("dev-exit", 4, 0)
	require.NoError(t, err)
	_, err = svc.ProcessPulse("dev-exit", 0, 3)
	require.NoError(t, err)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 1, state.CurrentCount)
	assert.Equal(t, 4, state.TodayVisits)
}

func TestRolloverOncePerDay(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-roll", 50)
	svc := NewIngestService(db)

	day1 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
	svc.now = fixedClock(day1)

	_, err := svc.ProcessPulse("dev-roll", 3, 0)
	require.NoError(t, err)

	// Same day, 13 hours later: no rollover despite the elapsed time.
	svc.now = fixedClock(day1.Add(13 * time.Hour))
	_, err = svc.ProcessPulse("dev-roll", 2, 0)
	require.NoError(t, err)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 5, state.TodayVisits)

	// First pulse of the next day archives, second must not re-archive with a
	// stale snapshot.
	day2 := day1.Add(24 * time.Hour)
	svc.now = fixedClock(day2)
	_, err = svc.ProcessPulse("dev-roll", 1, 0)
	require.NoError(t, err)
	svc.now = fixedClock(day2.Add(time.Hour))
	_, err = svc.ProcessPulse("dev-roll", 1, 0)
	require.NoError(t, err)

	state = counterFor(t, db, site.ID)
	assert.Equal(t, 5, state.YesterdayVisits)
	assert.Equal(t, 2, state.TodayVisits)
}

func TestRolloverKeepsCurrentCount(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-midnight", 50)
	svc := NewIngestService(db)

	day1 := time.Date(2026, 3, 14, 23, 50, 0, 0, time.Local)
	svc.now = fixedClock(day1)
	_, err := svc.ProcessPulse("dev-midnight", 6, 0)
	require.NoError(t, err)

	// Physical occupancy persists across midnight; only the visit tallies roll.
	svc.now = fixedClock(day1.Add(20 * time.Minute))
	count, err := svc.ProcessPulse("dev-midnight", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 4, state.CurrentCount)
	assert.Equal(t, 6, state.YesterdayVisits)
	assert.Equal(t, 0, state.TodayVisits)
}

func TestMultiDayGapRollsOverOnce(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-gap", 50)
	svc := NewIngestService(db)

	day1 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	svc.now = fixedClock(day1)
	_, err := svc.ProcessPulse("dev-gap", 7, 0)
	require.NoError(t, err)

	// A week of silence: the next pulse performs one step, so the last active
	// day's tally lands in "yesterday" and older history is gone.
	svc.now = fixedClock(day1.Add(7 * 24 * time.Hour))
	_, err = svc.ProcessPulse("dev-gap", 1, 0)
	require.NoError(t, err)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 7, state.YesterdayVisits)
	assert.Equal(t, 1, state.TodayVisits)
}

func TestProcessPulseEndToEnd(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-1", 10)
	svc := NewIngestService(db)

	day1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)
	svc.now = fixedClock(day1)

	for i := 0; i < 3; i++ {
		_, err := svc.ProcessPulse("dev-1", 1, 0)
		require.NoError(t, err)
	}
	count, err := svc.ProcessPulse("dev-1", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 2, state.CurrentCount)
	assert.Equal(t, 3, state.TodayVisits)

	svc.now = fixedClock(day1.Add(24 * time.Hour))
	count, err = svc.ProcessPulse("dev-1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	state = counterFor(t, db, site.ID)
	assert.Equal(t, 3, state.YesterdayVisits)
	assert.Equal(t, 1, state.TodayVisits)
	assert.Equal(t, 3, state.CurrentCount)
}

func TestLedgerFailureDoesNotAbortCounterUpdate(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-ledger", 50)
	svc := NewIngestService(db)

	// Make ledger appends fail while counter writes keep working.
	require.NoError(t, db.Migrator().DropTable(&models.FootfallEvent{}))

	count, err := svc.ProcessPulse("dev-ledger", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 2, state.CurrentCount)
	assert.Equal(t, 2, state.TodayVisits)
}

func TestProcessPulseWritesLedgerEvents(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-events", 50)
	svc := NewIngestService(db)

	_, err := svc.ProcessPulse("dev-events", 3, 1)
	require.NoError(t, err)

	var events []models.FootfallEvent
	require.NoError(t, db.Where("site_id = ?", site.ID).Order("action").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, models.ActionEntry, events[0].Action)
	assert.Equal(t, 3, events[0].Count)
	assert.Equal(t, models.ActionExit, events[1].Action)
	assert.Equal(t, 1, events[1].Count)

	// A one-directional pulse appends a single event.
	_, err = svc.ProcessPulse("dev-events", 1, 0)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&models.FootfallEvent{}).Where("site_id = ?", site.ID).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestFirstPulseStampsDayWithoutArchiving(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

	// A counter that never saw a pulse has a zero reset date. The first
	// pulse must stamp the day but leave the tallies alone.
	state := models.CounterState{TodayVisits: 9, YesterdayVisits: 4}
	assert.False(t, rolloverDay(&state, now))
	assert.Equal(t, localMidnight(now), state.LastResetDate)
	assert.Equal(t, 9, state.TodayVisits)
	assert.Equal(t, 4, state.YesterdayVisits)

	// A stamped counter still rolls over on the next day as usual.
	assert.True(t, rolloverDay(&state, now.Add(24*time.Hour)))
	assert.Equal(t, 9, state.YesterdayVisits)
	assert.Equal(t, 0, state.TodayVisits)
}

func TestProcessPulseCreatesMissingCounterRow(t *testing.T) {
	db := newTestDB(t)
	site := createSite(t, db, "dev-legacy", 50)
	require.NoError(t, db.Where("site_id = ?", site.ID).Delete(&models.CounterState{}).Error)
	svc := NewIngestService(db)

	count, err := svc.ProcessPulse("dev-legacy", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	state := counterFor(t, db, site.ID)
	assert.Equal(t, 2, state.TodayVisits)
	assert.False(t, state.LastResetDate.IsZero())
}
