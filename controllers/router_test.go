package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crowdgauge/crowdgauge/middleware"
	"github.com/crowdgauge/crowdgauge/models"
	"github.com/crowdgauge/crowdgauge/services"
)

// newTestEnv wires the controllers onto a bare engine the way the routes
// package does, minus the rate limiter and file loggers.
func newTestEnv(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

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

	ingest := services.NewIngestService(db)

	authController := NewAuthController(db)
	siteController := NewSiteController(db)
	ingestController := NewIngestController(ingest)
	analyticsController := NewAnalyticsController(db, ingest.Ledger())

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/iot/update", ingestController.Update)
	api.POST("/auth/register", authController.Register)
	api.POST("/auth/login", authController.Login)
	api.POST("/auth/logout", middleware.AuthRequired(), authController.Logout)
	api.GET("/auth/me", middleware.AuthRequired(), authController.Me)
	api.GET("/sites", siteController.List)
	api.POST("/sites", middleware.AuthRequired(), siteController.Create)
	api.PATCH("/sites/mine", middleware.AuthRequired(), siteController.Update)
	api.GET("/sites/mine", middleware.AuthRequired(), siteController.Mine)
	api.GET("/analytics/hourly", middleware.AuthRequired(), analyticsController.Hourly)

	return r, db
}

type envelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

// operatorToken registers a fresh operator and returns its JWT.
func operatorToken(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": username,
		"password": "hunter-2",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, "register failed: %s", w.Body.String())

	token, _ := env.Data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func sendPulse(t *testing.T, r *gin.Engine, deviceID string, entries, exits int) envelope {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/iot/update", gin.H{
		"deviceId": deviceID,
		"entries":  entries,
		"exits":    exits,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, "pulse failed: %s", w.Body.String())
	return env
}

func seedSite(t *testing.T, db *gorm.DB, ownerID uint, deviceID string, capacity int) models.Site {
	t.Helper()

	site := models.Site{
		AdminUserID:    ownerID,
		Name:           fmt.Sprintf("Venue %d", ownerID),
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

func counterForSite(t *testing.T, db *gorm.DB, siteID uint) models.CounterState {
	t.Helper()

	var state models.CounterState
	require.NoError(t, db.Where("site_id = ?", siteID).First(&state).Error)
	return state
}
