package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crowdgauge/crowdgauge/models"
	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

// AnalyticsController serves per-site aggregations over the footfall ledger.
type AnalyticsController struct {
	db     *gorm.DB
	ledger *services.Ledger
}

// NewAnalyticsController creates an AnalyticsController.
func NewAnalyticsController(db *gorm.DB, ledger *services.Ledger) *AnalyticsController {
	return &AnalyticsController{db: db, ledger: ledger}
}

// Hourly returns today's entries clustered into 24 hourly buckets for the
// operator's site. Buckets with no traffic are zero, never omitted.
func (c *AnalyticsController) Hourly(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var site models.Site
	if err := c.db.Where("admin_user_id = ?", userID).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "site not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load site")
		return
	}

	buckets, err := services.HourlyBreakdown(c.ledger, site.ID, time.Now())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to build hourly breakdown")
		return
	}

	utils.Success(ctx, gin.H{"chart_data": buckets})
}
