package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// ルート登録に必要なhandler一式
type Handlers struct {
	Health         *handler.HealthHandler
	Orders         *handler.OrderHandler
	Inventory      *handler.InventoryHandler
	AdminOrders    *handler.AdminOrderHandler
	AdminInventory *handler.AdminInventoryHandler
	AdminAudit     *handler.AdminAuditHandler
}

func New(cfg config.Config, h Handlers, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.BodyLimit("1M"))

	RegisterRoutes(e, cfg, h)
	return e
}

// ctxが終わるまで待ち受けて、終わったら処理中のリクエストを待って止める
func Run(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return e.Shutdown(shutdownCtx)
}
