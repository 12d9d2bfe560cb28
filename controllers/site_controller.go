package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crowdgauge/crowdgauge/models"
	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

const sitesPublicCacheKey = "cache:sites:public"

// SiteController handles venue registration and the public directory.
type SiteController struct {
	db *gorm.DB
}

// NewSiteController creates a SiteController.
func NewSiteController(db *gorm.DB) *SiteController {
	return &SiteController{db: db}
}

type siteRequest struct {
	Name           string   `json:"name" binding:"required"`
	Address        string   `json:"address"`
	Category       string   `json:"category"`
	MaxCapacity    int      `json:"max_capacity" binding:"required"`
	SensorDeviceID string   `json:"sensor_device_id"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
}

// Create registers a new site for the authenticated operator. Each operator
// runs one site and each site owns one sensor.
func (s *SiteController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req siteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	if req.MaxCapacity <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40011, "max_capacity must be positive")
		return
	}

	var existing models.Site
	if err := s.db.Where("admin_user_id = ?", userID).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "operator already has a site")
		return
	}

	deviceID := strings.TrimSpace(req.SensorDeviceID)
	if deviceID == "" {
		deviceID = fmt.Sprintf("sensor-%s", uuid.NewString())
	} else {
		var taken models.Site
		if err := s.db.Where("sensor_device_id = ?", deviceID).First(&taken).Error; err == nil {
			utils.Error(ctx, http.StatusConflict, 40911, "sensor device already registered")
			return
		}
	}

	site := models.Site{
		AdminUserID:    userID,
		Name:           utils.Sanitize(strings.TrimSpace(req.Name)),
		Address:        utils.Sanitize(strings.TrimSpace(req.Address)),
		Category:       utils.Sanitize(strings.TrimSpace(req.Category)),
		MaxCapacity:    req.MaxCapacity,
		SensorDeviceID: deviceID,
		Counter:        models.CounterState{LastResetDate: time.Now()},
	}
	if req.Lat != nil {
		site.Lat = *req.Lat
	}
	if req.Lng != nil {
		site.Lng = *req.Lng
	}
	if site.Name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40012, "site name must not be empty")
		return
	}

	if err := s.db.Create(&site).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to create site")
		return
	}

	utils.InvalidateByPrefix(sitesPublicCacheKey)
	utils.Success(ctx, gin.H{
		"site":             site,
		"sensor_device_id": site.SensorDeviceID,
	})
}

// Update changes display metadata and capacity. The sensor binding is
// immutable: re-pairing a device means registering a new site.
func (s *SiteController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var site models.Site
	if err := s.db.Where("admin_user_id = ?", userID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "site not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load site")
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Address     string   `json:"address"`
		Category    string   `json:"category"`
		MaxCapacity *int     `json:"max_capacity"`
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid request payload")
		return
	}

	if name := utils.Sanitize(strings.TrimSpace(req.Name)); name != "" {
		site.Name = name
	}
	if addr := utils.Sanitize(strings.TrimSpace(req.Address)); addr != "" {
		site.Address = addr
	}
	if cat := utils.Sanitize(strings.TrimSpace(req.Category)); cat != "" {
		site.Category = cat
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40011, "max_capacity must be positive")
			return
		}
		site.MaxCapacity = *req.MaxCapacity
	}
	if req.Lat != nil {
		site.Lat = *req.Lat
	}
	if req.Lng != nil {
		site.Lng = *req.Lng
	}

	if err := s.db.Save(&site).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to update site")
		return
	}

	utils.InvalidateByPrefix(sitesPublicCacheKey)
	utils.Success(ctx, gin.H{"site": site})
}

// Mine returns the operator's site with stats recomputed from the stored
// counters, never from anything cached.
func (s *SiteController) Mine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var site models.Site
	if err := s.db.Preload("Counter").Where("admin_user_id = ?", userID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "site not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load site")
		return
	}

	state := services.RolloverView(site.Counter, time.Now())
	stats, err := services.EvaluateStatus(state, site.MaxCapacity)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to evaluate site status")
		return
	}

	site.Counter = state
	utils.Success(ctx, gin.H{
		"site":             site,
		"sensor_device_id": site.SensorDeviceID,
		"stats":            stats,
	})
}

// List serves the public directory, busiest venues first. Sensor device ids
// and owner identities never leave this handler.
func (s *SiteController) List(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(sitesPublicCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var sites []models.Site
	if err := s.db.Preload("Counter").
		Joins("LEFT JOIN counter_states ON counter_states.site_id = sites.id").
		Order("counter_states.current_count DESC").
		Find(&sites).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to list sites")
		return
	}

	items := make([]gin.H, 0, len(sites))
	for _, site := range sites {
		items = append(items, gin.H{
			"id":            site.ID,
			"name":          site.Name,
			"address":       site.Address,
			"category":      site.Category,
			"lat":           site.Lat,
			"lng":           site.Lng,
			"current_count": site.Counter.CurrentCount,
			"crowd_level":   services.CrowdLevel(site.Counter.CurrentCount, site.MaxCapacity),
		})
	}

	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: gin.H{"sites": items}}
	// Short TTL: ordering shifts with every pulse, stale directory rows are
	// tolerable for a few seconds but not longer.
	utils.CacheSetJSON(sitesPublicCacheKey, wrapper, 15*time.Second)
	utils.Success(ctx, gin.H{"sites": items})
}
