package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminInventoryHandler struct {
	uc *usecase.AdminInventoryUsecase
}

func NewAdminInventoryHandler(uc *usecase.AdminInventoryUsecase) *AdminInventoryHandler {
	return &AdminInventoryHandler{uc: uc}
}

type InventoryCreateRequest struct {
	ProductID         int64 `json:"product_id"`
	InitialQuantity   int64 `json:"initial_quantity"`
	LowStockThreshold int64 `json:"low_stock_threshold"`
	TrackQuantity     *bool `json:"track_quantity"`
	AllowBackorder    bool  `json:"allow_backorder"`
}

type InventoryAdjustRequest struct {
	Delta  int64  `json:"delta"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (h *AdminInventoryHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/inventory", h.create)
	admin.POST("/inventory/:product_id/adjustments", h.adjust)
	admin.GET("/inventory/:product_id/logs", h.logs)
	admin.GET("/inventory/:product_id/reconcile", h.reconcile)
}

func (h *AdminInventoryHandler) create(c echo.Context) error {
	user, ok := getUserFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req InventoryCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	//省略時は数量管理あり
	track := true
	if req.TrackQuantity != nil {
		track = *req.TrackQuantity
	}

	out, err := h.uc.CreateRecord(c.Request().Context(), user, usecase.AdminCreateInventoryInput{
		ProductID:         req.ProductID,
		InitialQuantity:   req.InitialQuantity,
		LowStockThreshold: req.LowStockThreshold,
		TrackQuantity:     track,
		AllowBackorder:    req.AllowBackorder,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminInventoryHandler) adjust(c echo.Context) error {
	user, ok := getUserFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	var req InventoryAdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Adjust(c.Request().Context(), user, productID, usecase.AdminAdjustInventoryInput{
		Delta:  req.Delta,
		Type:   req.Type,
		Reason: req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) logs(c echo.Context) error {
	user, ok := getUserFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.uc.ListLog(c.Request().Context(), user, productID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) reconcile(c echo.Context) error {
	user, ok := getUserFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	out, err := h.uc.Reconcile(c.Request().Context(), user, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
