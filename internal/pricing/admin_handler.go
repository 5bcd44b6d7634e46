package pricing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/middleware"
)

// CacheRefresher re-reads persisted configuration into the serving snapshot.
// Every admin write refreshes before the response goes out, so a successful
// call means the change is already live.
type CacheRefresher interface {
	RefreshPricing(ctx context.Context) error
	RefreshTownshipRules(ctx context.Context) error
	RefreshDispatchRounds(ctx context.Context) error
}

// AdminHandler exposes pricing and dispatch configuration management
type AdminHandler struct {
	repo  *Repository
	cache CacheRefresher
}

func NewAdminHandler(repo *Repository, cache CacheRefresher) *AdminHandler {
	return &AdminHandler{repo: repo, cache: cache}
}

// ListPricingConfigs handles GET /admin/pricing
func (h *AdminHandler) ListPricingConfigs(c *gin.Context) {
	configs, err := h.repo.ListPricingConfigs(c.Request.Context())
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to list pricing configs", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to list pricing configs")
		return
	}
	common.SuccessResponse(c, configs)
}

// UpsertPricingConfig handles PUT /admin/pricing/:class
func (h *AdminHandler) UpsertPricingConfig(c *gin.Context) {
	class := strings.ToUpper(strings.TrimSpace(c.Param("class")))
	if class == "" {
		common.AppErrorResponse(c, common.NewBadRequestError("Vehicle class is required", nil))
		return
	}

	var cfg Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}
	cfg.VehicleClass = class
	if cfg.BandPolicy == "" {
		cfg.BandPolicy = BandPolicySegment
	}
	if cfg.BandPolicy != BandPolicySegment && cfg.BandPolicy != BandPolicyWhole {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid band policy", nil))
		return
	}

	if err := h.repo.UpsertPricingConfig(c.Request.Context(), cfg); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to save pricing config",
			zap.String("vehicle_class", class), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to save pricing config")
		return
	}
	if err := h.cache.RefreshPricing(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to refresh pricing cache", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Config saved but cache refresh failed")
		return
	}

	h.audit(c, "pricing_config_upserted", zap.String("vehicle_class", class))
	common.SuccessResponse(c, cfg)
}

// DeletePricingConfig handles DELETE /admin/pricing/:class
func (h *AdminHandler) DeletePricingConfig(c *gin.Context) {
	class := strings.ToUpper(strings.TrimSpace(c.Param("class")))
	if err := h.repo.DeletePricingConfig(c.Request.Context(), class); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to delete pricing config",
			zap.String("vehicle_class", class), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete pricing config")
		return
	}
	if err := h.cache.RefreshPricing(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to refresh pricing cache", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Config deleted but cache refresh failed")
		return
	}

	h.audit(c, "pricing_config_deleted", zap.String("vehicle_class", class))
	common.SuccessResponse(c, gin.H{"vehicle_class": class})
}

type townshipRuleRequest struct {
	Township  string          `json:"township" binding:"required"`
	Surcharge decimal.Decimal `json:"surcharge"`
}

// UpsertTownshipRule handles PUT /admin/townships
func (h *AdminHandler) UpsertTownshipRule(c *gin.Context) {
	var req townshipRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}
	if req.Surcharge.IsNegative() {
		common.AppErrorResponse(c, common.NewBadRequestError("Surcharge cannot be negative", nil))
		return
	}

	if err := h.repo.UpsertTownshipRule(c.Request.Context(), req.Township, req.Surcharge); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to save township rule",
			zap.String("township", req.Township), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to save township rule")
		return
	}
	if err := h.cache.RefreshTownshipRules(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to refresh township cache", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Rule saved but cache refresh failed")
		return
	}

	h.audit(c, "township_rule_upserted", zap.String("township", req.Township))
	common.SuccessResponse(c, req)
}

// DeleteTownshipRule handles DELETE /admin/townships/:name
func (h *AdminHandler) DeleteTownshipRule(c *gin.Context) {
	name := c.Param("name")
	if err := h.repo.DeleteTownshipRule(c.Request.Context(), name); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to delete township rule",
			zap.String("township", name), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete township rule")
		return
	}
	if err := h.cache.RefreshTownshipRules(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to refresh township cache", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Rule deleted but cache refresh failed")
		return
	}

	h.audit(c, "township_rule_deleted", zap.String("township", name))
	common.SuccessResponse(c, gin.H{"township": name})
}

type dispatchRoundRequest struct {
	RadiusMeters float64 `json:"radius_meters" binding:"required,gt=0"`
	IntervalMs   int     `json:"interval_ms" binding:"required,gt=0"`
}

// ReplaceDispatchRounds handles PUT /admin/dispatch-rounds. The schedule is
// replaced as a whole; partial edits are not supported.
func (h *AdminHandler) ReplaceDispatchRounds(c *gin.Context) {
	var req []dispatchRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid request body: "+err.Error(), err))
		return
	}

	rounds := make([]DispatchRoundRow, len(req))
	for i, r := range req {
		rounds[i] = DispatchRoundRow{
			RoundIndex:   i + 1,
			RadiusMeters: r.RadiusMeters,
			IntervalMs:   r.IntervalMs,
		}
	}

	if err := h.repo.ReplaceDispatchRounds(c.Request.Context(), rounds); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to replace dispatch rounds", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to replace dispatch rounds")
		return
	}
	if err := h.cache.RefreshDispatchRounds(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to refresh dispatch rounds cache", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Rounds saved but cache refresh failed")
		return
	}

	h.audit(c, "dispatch_rounds_replaced", zap.Int("rounds", len(rounds)))
	common.SuccessResponse(c, rounds)
}

func (h *AdminHandler) audit(c *gin.Context, action string, fields ...zap.Field) {
	adminID, err := middleware.GetUserID(c)
	if err == nil {
		fields = append(fields, zap.String("admin_id", adminID.String()))
	}
	logger.WithContext(c.Request.Context()).Info("Admin action: "+action, fields...)
}

// RegisterAdminRoutes mounts the configuration endpoints under the given
// router group
func (h *AdminHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	pricing := rg.Group("", middleware.RequirePermission(middleware.PermManagePricing))
	{
		pricing.GET("/admin/pricing", h.ListPricingConfigs)
		pricing.PUT("/admin/pricing/:class", h.UpsertPricingConfig)
		pricing.DELETE("/admin/pricing/:class", h.DeletePricingConfig)
	}

	townships := rg.Group("", middleware.RequirePermission(middleware.PermManageTownships))
	{
		townships.PUT("/admin/townships", h.UpsertTownshipRule)
		townships.DELETE("/admin/townships/:name", h.DeleteTownshipRule)
	}

	rounds := rg.Group("", middleware.RequirePermission(middleware.PermManageDispatchRounds))
	{
		rounds.PUT("/admin/dispatch-rounds", h.ReplaceDispatchRounds)
	}
}
