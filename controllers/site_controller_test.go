package controllers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSiteGeneratesDeviceID(t *testing.T) {
	r, _ := newTestEnv(t)
	token := operatorToken(t, r, "mall-ops")

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name":         "City Mall",
		"max_capacity": 100,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	deviceID, _ := env.Data["sensor_device_id"].(string)
	assert.True(t, strings.HasPrefix(deviceID, "sensor-"), "got %q", deviceID)
}

func TestCreateSiteRequiresAuth(t *testing.T) {
	r, _ := newTestEnv(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "City Mall", "max_capacity": 100,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSiteRejectsNonPositiveCapacity(t *testing.T) {
	r, _ := newTestEnv(t)
	token := operatorToken(t, r, "mall-ops")

	for _, capacity := range []int{0, -5} {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
			"name": "City Mall", "max_capacity": capacity,
		}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestCreateSiteOnePerOperator(t *testing.T) {
	r, _ := newTestEnv(t)
	token := operatorToken(t, r, "mall-ops")

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "City Mall", "max_capacity": 100,
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "Second Mall", "max_capacity": 50,
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateSiteDuplicateDevice(t *testing.T) {
	r, db := newTestEnv(t)
	seedSite(t, db, 99, "dev-1", 10)
	token := operatorToken(t, r, "mall-ops")

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "City Mall", "max_capacity": 100, "sensor_device_id": "dev-1",
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMineReturnsRecomputedStats(t *testing.T) {
	r, _ := newTestEnv(t)
	token := operatorToken(t, r, "mall-ops")

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "City Mall", "max_capacity": 10, "sensor_device_id": "dev-1",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	sendPulse(t, r, "dev-1", 9, 0)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/sites/mine", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	stats, ok := env.Data["stats"].(map[string]any)
	require.True(t, ok, "missing stats: %s", w.Body.String())
	assert.EqualValues(t, 90, stats["occupancy_pct"])
	assert.Equal(t, "Warning", stats["status"])
	assert.Equal(t, "Crowd density high.", stats["message"])
}

func TestUpdateSiteKeepsDeviceBinding(t *testing.T) {
	r, db := newTestEnv(t)
	token := operatorToken(t, r, "mall-ops")

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sites", gin.H{
		"name": "City Mall", "max_capacity": 10, "sensor_device_id": "dev-1",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPatch, "/api/v1/sites/mine", gin.H{
		"name": "Bigger Mall", "max_capacity": 500, "sensor_device_id": "dev-2",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Table("sites").Where("sensor_device_id = ?", "dev-1").Count(&count).Error)
	assert.EqualValues(t, 1, count, "device binding is immutable")
}

func TestPublicListOrdersAndWithholds(t *testing.T) {
	r, db := newTestEnv(t)
	quiet := seedSite(t, db, 1, "dev-quiet", 100)
	busy := seedSite(t, db, 2, "dev-busy", 100)

	sendPulse(t, r, "dev-busy", 60, 0)
	sendPulse(t, r, "dev-quiet", 5, 0)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/sites", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	sites, ok := env.Data["sites"].([]any)
	require.True(t, ok)
	require.Len(t, sites, 2)

	first := sites[0].(map[string]any)
	second := sites[1].(map[string]any)
	assert.EqualValues(t, busy.ID, first["id"], "busiest site first")
	assert.EqualValues(t, quiet.ID, second["id"])
	assert.Equal(t, "Moderate", first["crowd_level"])
	assert.Equal(t, "Low Traffic", second["crowd_level"])

	body := w.Body.String()
	assert.NotContains(t, body, "dev-busy", "device ids never leave the public handler")
	assert.NotContains(t, body, "dev-quiet")
	assert.NotContains(t, body, "sensor_device_id")
	assert.NotContains(t, body, "admin_user_id")
}
