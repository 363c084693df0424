package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 在庫サマリの公開API
type InventoryHandler struct {
	uc *usecase.OrderFulfillmentUsecase
}

func NewInventoryHandler(uc *usecase.OrderFulfillmentUsecase) *InventoryHandler {
	return &InventoryHandler{uc: uc}
}

func (h *InventoryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/inventory/:product_id", h.summary)
}

func (h *InventoryHandler) summary(c echo.Context) error {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	out, err := h.uc.GetInventorySummary(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
