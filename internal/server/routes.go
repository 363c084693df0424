package server

import (
	"storefront/internal/config"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}
	h.Inventory.RegisterRoutes(e)
	h.Orders.RegisterRoutes(e, cfg)

	//管理者
	h.AdminOrders.RegisterRoutes(e, cfg)
	h.AdminInventory.RegisterRoutes(e, cfg)
	h.AdminAudit.RegisterRoutes(e, cfg)
}
