package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-orders/internal/identity"
	"storefront-orders/internal/service"
	"storefront-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface
type Options struct {
	APIPrefix  string
	CookieName string
	AdminRole  string
}

// Handler contains HTTP handlers
type Handler struct {
	orders  *service.OrderService
	queries *service.QueryService
	auth    identity.Authenticator
	opts    Options
	deps    map[string]Pinger
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(
	orders *service.OrderService,
	queries *service.QueryService,
	auth identity.Authenticator,
	opts Options,
	deps map[string]Pinger,
) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "access_token"
	}
	return &Handler{
		orders:  orders,
		queries: queries,
		auth:    auth,
		opts:    opts,
		deps:    deps,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group(h.opts.APIPrefix, h.requireIdentity())
	{
		api.POST("/orders/place", h.placeOrder)
		api.GET("/myorders", h.listMyOrders)
		api.GET("/orders", h.listAllOrders)
		api.GET("/orders/:id", h.getOrder)
		api.GET("/orders/:id/history", h.getOrderHistory)
		api.PUT("/orders/:id", h.updateOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not ready",
			"dependencies": failed,
			"time":         time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// placeOrder converts the posted cart into an order
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": bindingMessage(err),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	caller, _ := identity.FromContext(c.Request.Context())
	result, err := h.orders.PlaceOrderAs(c.Request.Context(), caller, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"success": true,
		"message": "Order placed successfully",
		"order":   result.Order,
	}
	if len(result.Warnings) > 0 {
		body["warnings"] = result.Warnings
	}
	if result.Replayed {
		body["replayed"] = true
	}
	c.JSON(http.StatusOK, body)
}

// listMyOrders returns the caller's orders
func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.queries.ListOrdersFor(c.Request.Context(), h.access(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// listAllOrders returns every order to an admin
func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.queries.ListAllOrders(c.Request.Context(), h.access(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
	})
}

// getOrder returns one order to its owner or an admin
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.queries.GetOrder(c.Request.Context(), h.access(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// getOrderHistory returns the status timeline of one order
func (h *Handler) getOrderHistory(c *gin.Context) {
	changes, err := h.queries.GetOrderHistory(c.Request.Context(), h.access(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    changes,
	})
}

// updateOrderStatus overwrites an order's status
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": bindingMessage(err),
		})
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), h.access(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order status updated",
		"data":    order,
	})
}

// bindingMessage names the field category a request failed to bind on
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	switch verrs[0].Field() {
	case "Cart":
		return "cart must contain at least one item"
	case "PaymentMethod":
		return "paymentMethod is required"
	case "DeliveryAddress":
		return "deliveryAddress is required"
	case "ProductID":
		return "cart item is missing a product id"
	case "Quantity":
		return "cart item quantity is out of range"
	case "Status":
		return "status is required"
	}
	return "Invalid request body"
}

// token reads the bearer credential from the session cookie, falling back
// to the Authorization header.
func (h *Handler) token(c *gin.Context) string {
	if cookie, err := c.Cookie(h.opts.CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// requireIdentity authenticates the caller and stores the identity on the
// request context.
func (h *Handler) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.token(c)
		if token == "" {
			h.respondError(c, service.ErrUnauthorized)
			c.Abort()
			return
		}

		caller, err := h.auth.Authenticate(c.Request.Context(), token)
		if errors.Is(err, identity.ErrUnauthenticated) {
			h.respondError(c, service.ErrUnauthorized)
			c.Abort()
			return
		}
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), caller))
		c.Next()
	}
}

// access derives the caller's capabilities from the identity on the request
func (h *Handler) access(c *gin.Context) service.Access {
	caller, ok := identity.FromContext(c.Request.Context())
	if !ok {
		return service.Access{}
	}
	return service.Access{
		UserID:     caller.UserID,
		Privileged: caller.HasRole(h.opts.AdminRole),
	}
}

// respondError maps service errors to status codes. Infrastructure causes
// are logged and replaced with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	var stockErr *service.InsufficientStockError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, service.ErrInvalidRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &stockErr):
		status, message = http.StatusBadRequest, stockErr.Error()
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, "Order not found"
	case errors.Is(err, service.ErrDuplicateRequest):
		status, message = http.StatusConflict, "A checkout with this idempotency key is already in progress"
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// requestLogger logs one line per request
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
