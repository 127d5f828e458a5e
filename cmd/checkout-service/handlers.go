package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/MikeMC777/tienda-ecom/internal/address"
	"github.com/MikeMC777/tienda-ecom/internal/cart"
	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/order"
	"github.com/MikeMC777/tienda-ecom/internal/payment"
	"github.com/MikeMC777/tienda-ecom/internal/stats"
)

type handlerDeps struct {
	carts         *cart.Service
	orders        *order.Service
	addresses     address.Repository
	stats         stats.Repository
	pay           *payment.Client
	webhookSecret string
	log           zerolog.Logger
}

func registerRoutes(r *gin.Engine, d *handlerDeps, jwtSecret string) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Cart routes accept either a bearer token or an X-Guest-Token header.
	g := r.Group("/cart", httpx.OptionalAuth(jwtSecret))
	g.GET("", getCartHandler(d.carts))
	g.DELETE("", clearCartHandler(d.carts))
	g.POST("/items", addCartItemHandler(d.carts))
	g.PUT("/items/:productID", updateCartItemHandler(d.carts))
	g.DELETE("/items/:productID", removeCartItemHandler(d.carts))
	r.POST("/cart/merge", httpx.RequireAuth(jwtSecret), mergeCartHandler(d.carts))

	auth := r.Group("", httpx.RequireAuth(jwtSecret))
	auth.POST("/addresses", createAddressHandler(d.addresses))
	auth.GET("/addresses", listAddressesHandler(d.addresses))
	auth.GET("/addresses/:id", getAddressHandler(d.addresses))
	auth.PUT("/addresses/:id", updateAddressHandler(d.addresses))
	auth.DELETE("/addresses/:id", deleteAddressHandler(d.addresses))

	auth.POST("/orders", placeOrderHandler(d))
	auth.GET("/orders", listOrdersHandler(d.orders))
	auth.GET("/orders/:id", getOrderHandler(d.orders))
	auth.POST("/orders/:id/cancel", cancelOrderHandler(d.orders))
	auth.PUT("/orders/:id/status", updateOrderStatusHandler(d.orders))

	auth.GET("/admin/stats", statsOverviewHandler(d.stats))
	auth.GET("/admin/stats/top-products", topProductsHandler(d.stats))

	// gateway callback, authenticated by HMAC signature instead of a JWT
	r.POST("/webhooks/payment", paymentWebhookHandler(d))
}

// identityFrom builds the cart identity. An authenticated user id always
// wins; the guest header only matters for anonymous requests.
func identityFrom(c *gin.Context) cart.Identity {
	return cart.Identity{
		UserID:     httpx.UserID(c),
		GuestToken: c.GetHeader("X-Guest-Token"),
	}
}

//
// ===== cart =====
//

func getCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.Get(c.Request.Context(), identityFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func addCartItemHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			ProductID string `json:"product_id" binding:"required"`
			Quantity  int    `json:"quantity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sum, err := svc.AddLine(c.Request.Context(), identityFrom(c), in.ProductID, in.Quantity)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func updateCartItemHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Quantity int `json:"quantity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sum, err := svc.UpdateQuantity(c.Request.Context(), identityFrom(c), c.Param("productID"), in.Quantity)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func removeCartItemHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.RemoveLine(c.Request.Context(), identityFrom(c), c.Param("productID"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func clearCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.Clear(c.Request.Context(), identityFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func mergeCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			GuestToken string `json:"guest_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sum, err := svc.Merge(c.Request.Context(), httpx.UserID(c), in.GuestToken)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

//
// ===== addresses =====
//

type addressRequest struct {
	Label      string `json:"label"`
	Recipient  string `json:"recipient" binding:"required"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
}

func createAddressHandler(repo address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in addressRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a := &address.Address{
			ID:         uuid.NewString(),
			UserID:     httpx.UserID(c),
			Label:      in.Label,
			Recipient:  in.Recipient,
			Phone:      in.Phone,
			Line1:      in.Line1,
			Line2:      in.Line2,
			City:       in.City,
			Region:     in.Region,
			PostalCode: in.PostalCode,
		}
		if err := repo.Create(c.Request.Context(), a); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func listAddressesHandler(repo address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.ListByUser(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if out == nil {
			out = []address.Address{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func getAddressHandler(repo address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := repo.GetByID(c.Request.Context(), c.Param("id"), httpx.UserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func updateAddressHandler(repo address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in addressRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a, err := repo.GetByID(c.Request.Context(), c.Param("id"), httpx.UserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		a.Label = in.Label
		a.Recipient = in.Recipient
		a.Phone = in.Phone
		a.Line1 = in.Line1
		a.Line2 = in.Line2
		a.City = in.City
		a.Region = in.Region
		a.PostalCode = in.PostalCode
		if err := repo.Update(c.Request.Context(), a); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func deleteAddressHandler(repo address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"), httpx.UserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

//
// ===== orders =====
//

func placeOrderHandler(d *handlerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.PlaceOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o, lines, err := d.orders.PlaceOrder(c.Request.Context(), httpx.UserID(c), order.PlaceInput{
			AddressID:      in.AddressID,
			PaymentMethod:  in.PaymentMethod,
			DeliveryOption: in.DeliveryOption,
			CouponCode:     in.CouponCode,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}

		resp := gin.H{"order": o, "lines": lines}
		if d.pay != nil {
			// best effort: the order stands even if the gateway is down,
			// payment can be retried from the order page
			sess, err := d.pay.CreateSession(c.Request.Context(), o.OrderNumber, o.Total, "MXN")
			if err != nil {
				d.log.Warn().Err(err).Str("order", o.OrderNumber).Msg("payment session failed")
			} else {
				resp["payment_url"] = sess.URL
			}
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func listOrdersHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := svc.ListByUser(c.Request.Context(), httpx.UserID(c), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if out == nil {
			out = []order.Order{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func getOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, lines, err := svc.Get(c.Request.Context(), httpx.UserID(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "lines": lines})
	}
}

func cancelOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), httpx.UserID(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func updateOrderStatusHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), in.Status)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

//
// ===== payments =====
//

func paymentWebhookHandler(d *handlerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		if !payment.VerifySignature(d.webhookSecret, body, c.GetHeader("X-Signature")) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		var ev payment.WebhookEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if ev.Type != "payment.succeeded" {
			c.Status(http.StatusNoContent) // acknowledged, nothing to do
			return
		}
		o, err := d.orders.MarkPaid(c.Request.Context(), ev.OrderNumber, ev.SessionID, ev.Amount)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_number": o.OrderNumber, "payment_status": o.PaymentStatus})
	}
}

//
// ===== admin stats =====
//

func statsOverviewHandler(repo stats.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := repo.Overview(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func topProductsHandler(repo stats.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		out, err := repo.TopProducts(c.Request.Context(), limit)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
