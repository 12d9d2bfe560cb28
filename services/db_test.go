package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crowdgauge/crowdgauge/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A fresh connection would see a fresh :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Site{}, &models.CounterState{}, &models.FootfallEvent{},
	))
	return db
}

func createSite(t *testing.T, db *gorm.DB, deviceID string, capacity int) models.Site {
	t.Helper()

	site := models.Site{
		AdminUserID:    1,
		Name:           "Corner Shop",
		Address:        "12 Main St",
		Category:       "Retail",
		MaxCapacity:    capacity,
		SensorDeviceID: deviceID,
		// gorm skips zero-value associations on create, so the counter needs
		// at least one non-zero field to be written alongside the site.
		Counter: models.CounterState{LastResetDate: time.Now()},
	}
	require.NoError(t, db.Create(&site).Error)
	return site
}

func counterFor(t *testing.T, db *gorm.DB, siteID uint) models.CounterState {
	t.Helper()

	var state models.CounterState
	require.NoError(t, db.Where("site_id = ?", siteID).First(&state).Error)
	return state
}

func TestUserSitesAssociation(t *testing.T) {
	db := newTestDB(t)

	user := models.User{Username: "mall-ops"}
	require.NoError(t, db.Create(&user).Error)
	site := models.Site{
		AdminUserID:    user.ID,
		Name:           "Corner Shop",
		MaxCapacity:    10,
		SensorDeviceID: "dev-assoc",
		Counter:        models.CounterState{LastResetDate: time.Now()},
	}
	require.NoError(t, db.Create(&site).Error)

	var got models.User
	require.NoError(t, db.Preload("Sites").First(&got, user.ID).Error)
	require.Len(t, got.Sites, 1)
	require.Equal(t, site.ID, got.Sites[0].ID)
}
