package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

// IngestController is the device-facing pulse endpoint. It is intentionally
// unauthenticated: sensors identify themselves by device id, admission is
// guarded by the rate limiter and the unknown-device rejection.
type IngestController struct {
	ingest *services.IngestService
}

// NewIngestController creates an IngestController.
func NewIngestController(ingest *services.IngestService) *IngestController {
	return &IngestController{ingest: ingest}
}

type pulseRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Entries  int    `json:"entries"`
	Exits    int    `json:"exits"`
}

// Update applies one sensor pulse and returns the resulting headcount.
func (c *IngestController) Update(ctx *gin.Context) {
	var req pulseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	newCount, err := c.ingest.ProcessPulse(req.DeviceID, req.Entries, req.Exits)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPayload):
			utils.Error(ctx, http.StatusBadRequest, 40021, "invalid pulse payload")
		case errors.Is(err, services.ErrUnknownDevice):
			utils.Error(ctx, http.StatusNotFound, 40421, "unknown device")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to apply pulse")
		}
		return
	}

	utils.Success(ctx, gin.H{"success": true, "newCount": newCount})
}
