package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Catalog is the read side of the product repository.
type Catalog interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
	List(ctx context.Context, page, pageSize int) ([]models.Product, int64, error)
}

// HealthFunc reports the health of each dependency by name.
type HealthFunc func(ctx context.Context) map[string]error

// Dependencies are the services the HTTP handlers call.
type Dependencies struct {
	Checkout *checkout.Service
	Catalog  Catalog
	Sessions cart.Store
	Health   HealthFunc
}

// Gateway is the storefront HTTP API.
type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	checkout *checkout.Service
	catalog  Catalog
	sessions cart.Store
	health   HealthFunc
}

// NewGateway creates the gin engine. Call SetupRoutes before serving.
func NewGateway(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Gateway {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:   cfg,
		logger:   logger.Named("gateway"),
		router:   router,
		checkout: deps.Checkout,
		catalog:  deps.Catalog,
		sessions: deps.Sessions,
		health:   deps.Health,
	}
}

// SetupRoutes registers every storefront route.
func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", g.healthCheck)

	shop := g.router.Group("")
	shop.Use(g.identityMiddleware(), g.sessionMiddleware())
	{
		products := shop.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
		}

		c := shop.Group("/cart")
		{
			c.GET("", g.viewCart)
			c.POST("/add", g.addToCart)
			c.POST("/update", g.updateCart)
			c.POST("/remove", g.removeFromCart)
			c.POST("/clear", g.clearCart)
		}

		co := shop.Group("/checkout")
		{
			co.GET("", g.checkoutOverview)
			co.POST("/address", g.chooseAddress)
			co.POST("/pay", g.pay)
			co.GET("/success", g.checkoutSuccess)
			co.GET("/wallet/return", g.walletReturn)
			co.GET("/cancel", g.cancelPayment)
		}

		orders := shop.Group("/orders")
		{
			orders.GET("", requireUser(), g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.GET("/:id/invoice", g.getInvoice)
		}

		addresses := shop.Group("/addresses", requireUser())
		{
			addresses.GET("", g.listAddresses)
			addresses.POST("", g.createAddress)
			addresses.DELETE("/:id", g.deleteAddress)
		}

		admin := shop.Group("/admin", requireAdmin())
		{
			admin.PUT("/orders/:id/status", g.updateOrderStatus)
			admin.POST("/orders/:id/cod-confirm", g.confirmCOD)
			admin.GET("/orders/:id/events", g.orderEvents)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves HTTP until Shutdown is called.
func (g *Gateway) Start() error {
	addr := g.config.Gateway.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) healthCheck(c *gin.Context) {
	if g.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	status := http.StatusOK
	deps := make(map[string]string)
	for name, err := range g.health(c.Request.Context()) {
		if err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
