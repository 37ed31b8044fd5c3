package router

import (
	"net/http"

	"digitalMenu/internal/middleware"
	"digitalMenu/internal/rest"
	"digitalMenu/pkg/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func SetupUserRoutes(api *echo.Group, handler *rest.UserHandler, authRequired echo.MiddlewareFunc) {
	users := api.Group("/users")

	users.GET("/email-verification/:code", handler.VerifyEmail)
	users.POST("/register", handler.Register)
	users.POST("/login", handler.Login)
	users.POST("/logout", handler.Logout, authRequired)
}

// SetupProductRoutes leaves the menu public; changes need a manager.
func SetupProductRoutes(api *echo.Group, handler *rest.ProductHandler, authRequired, managerOnly echo.MiddlewareFunc) {
	products := api.Group("/products")

	products.GET("", handler.GetAllProducts)
	products.GET("/:id", handler.GetProductByID)
	products.POST("", handler.CreateProduct, authRequired, managerOnly)
	products.PUT("/:id", handler.UpdateProduct, authRequired, managerOnly)
	products.DELETE("/:id", handler.DeleteProduct, authRequired, managerOnly)
}

func setupCartRoutes(g *echo.Group, cart *rest.CartHandler, orders *rest.OrdersHandler, extra ...echo.MiddlewareFunc) {
	g.GET("", cart.Get)
	g.DELETE("", cart.Clear)
	g.POST("/items", cart.AddItem)
	g.PUT("/items/:product_id", cart.UpdateItem)
	g.DELETE("/items/:product_id", cart.RemoveItem)
	g.POST("/checkout", orders.Checkout, extra...)
}

func SetupCartRoutes(api *echo.Group, cart *rest.CartHandler, orders *rest.OrdersHandler, authRequired echo.MiddlewareFunc) {
	setupCartRoutes(api.Group("/cart", authRequired), cart, orders)
}

func SetOrdersRoutes(api *echo.Group, handler *rest.OrdersHandler, authRequired, managerOnly echo.MiddlewareFunc) {
	orders := api.Group("/orders", authRequired)
	orders.POST("", handler.Create)
	orders.GET("", handler.List)
	orders.GET("/:id", handler.Get)
	orders.POST("/:id/cancel", handler.Cancel)
	orders.PATCH("/:id/status", handler.UpdateStatus, managerOnly)
}

// SetTableSessionRoutes serves anonymous diners identified by X-Table-Token.
// Order placement is rate limited per table code.
func SetTableSessionRoutes(api *echo.Group, orders *rest.OrdersHandler, cart *rest.CartHandler, tableSession, limiter echo.MiddlewareFunc) {
	ts := api.Group("/table-session", tableSession)
	ts.GET("", rest.TableSession)

	ts.POST("/orders", orders.Create, limiter)
	ts.GET("/orders", orders.List)
	ts.GET("/orders/:id", orders.Get)
	ts.POST("/orders/:id/cancel", orders.Cancel)

	setupCartRoutes(ts.Group("/cart"), cart, orders, limiter)
}

func SetTablesRoutes(api *echo.Group, handler *rest.TablesHandler, authRequired, managerOnly echo.MiddlewareFunc) {
	tables := api.Group("/tables", authRequired, managerOnly)
	tables.GET("", handler.List)
	tables.POST("", handler.Create)
	tables.GET("/:id", handler.Get)
	tables.PATCH("/:id/status", handler.SetStatus)
	tables.POST("/:id/token", handler.RegenerateToken)
	tables.POST("/:id/accounts", handler.OpenAccount)
	tables.GET("/:id/accounts", handler.ListAccounts)
	tables.POST("/:id/close", handler.Close)

	accounts := api.Group("/accounts", authRequired, managerOnly)
	accounts.GET("/:id", handler.GetAccount)
	accounts.POST("/:id/pay", handler.Pay)
	accounts.POST("/:id/cancel", handler.CancelAccount)
	accounts.POST("/:id/revenue", handler.RecordRevenue)
}

// TableOrderLimiter throttles anonymous order placement, keyed by table code
// so diners behind one NAT do not share a bucket with other tables.
func TableOrderLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Skipper: echomiddleware.DefaultSkipper,
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(
			echomiddleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.TableOrdersPerSecond),
				Burst:     cfg.TableOrdersBurst,
				ExpiresIn: cfg.ExpiresIn,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if token := c.Request().Header.Get(middleware.HeaderTableToken); token != "" {
				return "table:" + token, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "could not identify caller")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many orders, try again shortly")
		},
	})
}
