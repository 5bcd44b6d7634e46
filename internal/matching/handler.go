package matching

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/middleware"
	"github.com/myanride/dispatch/pkg/models"
)

type driverResolver interface {
	GetDriverIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// Handler exposes driver presence endpoints
type Handler struct {
	service  *Service
	resolver driverResolver
}

func NewHandler(service *Service, resolver driverResolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

type updateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Heading   float64  `json:"heading"`
}

// UpdateLocation handles PUT /driver/location
func (h *Handler) UpdateLocation(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}

	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}

	driverID, err := h.resolver.GetDriverIDByUserID(c.Request.Context(), userID)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("Driver profile not found"))
		return
	}

	loc := models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.service.UpdateDriverLocation(c.Request.Context(), driverID, loc, req.Heading); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to update driver location",
			zap.String("driver_id", driverID.String()), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to update location")
		return
	}

	common.SuccessResponse(c, gin.H{"driver_id": driverID})
}

// GoOffline handles DELETE /driver/location
func (h *Handler) GoOffline(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}

	driverID, err := h.resolver.GetDriverIDByUserID(c.Request.Context(), userID)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("Driver profile not found"))
		return
	}

	if err := h.service.SetDriverOffline(c.Request.Context(), driverID); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to remove driver presence",
			zap.String("driver_id", driverID.String()), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to go offline")
		return
	}

	common.SuccessResponse(c, gin.H{"driver_id": driverID})
}

// RegisterRoutes mounts the presence endpoints under the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/driver/location", middleware.RequirePermission(middleware.PermUpdateLocation), h.UpdateLocation)
	rg.DELETE("/driver/location", middleware.RequirePermission(middleware.PermUpdateLocation), h.GoOffline)
}
