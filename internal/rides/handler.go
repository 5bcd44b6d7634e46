package rides

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/middleware"
)

type driverResolver interface {
	GetDriverIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// Handler exposes the ride lifecycle over HTTP
type Handler struct {
	service  *Service
	resolver driverResolver
}

func NewHandler(service *Service, resolver driverResolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

// serviceError renders a service-layer failure, falling back to a logged 500
// for anything outside the HTTP error taxonomy.
func serviceError(c *gin.Context, err error, fallback string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.AppErrorResponse(c, appErr)
		return
	}
	logger.WithContext(c.Request.Context()).Error(fallback, zap.Error(err))
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}

// CreateRide handles POST /rides
func (h *Handler) CreateRide(c *gin.Context) {
	riderID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), riderID, req)
	if err != nil {
		serviceError(c, err, "Failed to create ride")
		return
	}

	common.CreatedResponse(c, ride)
}

// GetRide handles GET /rides/:id
func (h *Handler) GetRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid ride id", err))
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID)
	if err != nil {
		serviceError(c, err, "Failed to load ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// ListRides handles GET /rides
func (h *Handler) ListRides(c *gin.Context) {
	riderID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}

	rides, err := h.service.ListRides(c.Request.Context(), riderID, 20)
	if err != nil {
		serviceError(c, err, "Failed to list rides")
		return
	}

	common.SuccessResponse(c, rides)
}

// CancelRide handles POST /rides/:id/cancel
func (h *Handler) CancelRide(c *gin.Context) {
	riderID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid ride id", err))
		return
	}

	if err := h.service.CancelRide(c.Request.Context(), rideID, riderID); err != nil {
		serviceError(c, err, "Failed to cancel ride")
		return
	}

	common.SuccessResponse(c, gin.H{"ride_id": rideID, "state": dispatch.StateCancelled})
}

// AcceptOffer handles POST /driver/rides/:id/accept
func (h *Handler) AcceptOffer(c *gin.Context) {
	h.respond(c, "accept")
}

// DeclineOffer handles POST /driver/rides/:id/decline
func (h *Handler) DeclineOffer(c *gin.Context) {
	h.respond(c, "decline")
}

func (h *Handler) respond(c *gin.Context, action string) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("Unauthorized"))
		return
	}
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid ride id", err))
		return
	}

	driverID, err := h.resolver.GetDriverIDByUserID(c.Request.Context(), userID)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("Driver profile not found"))
		return
	}

	if action == "accept" {
		err = h.service.AcceptOffer(c.Request.Context(), rideID, driverID)
	} else {
		err = h.service.DeclineOffer(c.Request.Context(), rideID, driverID)
	}
	if err != nil {
		serviceError(c, err, "Failed to respond to offer")
		return
	}

	common.SuccessResponse(c, gin.H{"ride_id": rideID, "action": action})
}

// Quote handles POST /rides/quote
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err, "Failed to compute quote")
		return
	}

	common.SuccessResponse(c, quote)
}

// RegisterRoutes mounts the ride endpoints under the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rides", middleware.RequirePermission(middleware.PermRequestRide), h.CreateRide)
	rg.GET("/rides", middleware.RequirePermission(middleware.PermRequestRide), h.ListRides)
	rg.POST("/rides/quote", h.Quote)
	rg.GET("/rides/:id", h.GetRide)
	rg.POST("/rides/:id/cancel", middleware.RequirePermission(middleware.PermCancelRide), h.CancelRide)
	rg.POST("/driver/rides/:id/accept", middleware.RequirePermission(middleware.PermRespondToOffer), h.AcceptOffer)
	rg.POST("/driver/rides/:id/decline", middleware.RequirePermission(middleware.PermRespondToOffer), h.DeclineOffer)
}
