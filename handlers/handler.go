package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	consulapi "github.com/hashicorp/consul/api"

	"github.com/selva-b/e-com-sub000/internal/addresses"
	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/cart"
	"github.com/selva-b/e-com-sub000/internal/coupons"
	"github.com/selva-b/e-com-sub000/internal/notifications"
	"github.com/selva-b/e-com-sub000/internal/orders"
	"github.com/selva-b/e-com-sub000/internal/products"
	"github.com/selva-b/e-com-sub000/internal/stores/kafka"
	"github.com/selva-b/e-com-sub000/internal/wishlist"
	"github.com/selva-b/e-com-sub000/middleware"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
)

type Handler struct {
	p      products.Conf
	cConf  cart.Conf
	cache  *cart.Cache
	cpn    coupons.Conf
	o      *orders.Conf
	n      notifications.Conf
	d      *notifications.Dispatcher
	w      wishlist.Conf
	addr   addresses.Conf
	k      *kafka.Conf
	client *consulapi.Client
}

func NewHandler(p products.Conf, cConf cart.Conf, cache *cart.Cache, cpn coupons.Conf,
	o *orders.Conf, n notifications.Conf, d *notifications.Dispatcher,
	w wishlist.Conf, addr addresses.Conf, k *kafka.Conf, client *consulapi.Client) *Handler {
	return &Handler{
		p:      p,
		cConf:  cConf,
		cache:  cache,
		cpn:    cpn,
		o:      o,
		n:      n,
		d:      d,
		w:      w,
		addr:   addr,
		k:      k,
		client: client,
	}
}

func API(endpointPrefix string, k *auth.Keys, h *Handler) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(k)
	if err != nil {
		panic(err)
	}

	//apply middleware to all the endpoints using r.Use
	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)

	// The payment gateway calls the webhook directly; it authenticates via
	// event verification, not a bearer token.
	r.POST("/webhook", h.Webhook)

	v1 := r.Group(endpointPrefix)
	{
		v1.GET("/products/list", h.ListProducts)
		v1.GET("/products/view/:id", h.GetProduct)
		v1.GET("/products/stock/:productID", h.ProductStock)

		v1.Use(m.Authentication())

		v1.POST("/products/create", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		v1.PUT("/products/update/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		v1.PUT("/products/sale/:id", m.Authorize(h.SetSaleWindow, auth.RoleAdmin))
		v1.DELETE("/products/delete/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		v1.POST("/cart/add-item", m.Authorize(h.AddToCart, auth.RoleUser))
		v1.PUT("/cart/update-item", m.Authorize(h.UpdateCartItem, auth.RoleUser))
		v1.PUT("/cart/select-item", m.Authorize(h.SelectCartItem, auth.RoleUser))
		v1.DELETE("/cart/remove-item/:productID", m.Authorize(h.RemoveCartItem, auth.RoleUser))
		v1.GET("/cart/items", m.Authorize(h.GetActiveCartItems, auth.RoleUser))

		v1.POST("/coupons/apply", m.Authorize(h.ApplyCoupon, auth.RoleUser))
		v1.POST("/coupons/create", m.Authorize(h.CreateCoupon, auth.RoleAdmin))
		v1.PUT("/coupons/update/:id", m.Authorize(h.UpdateCoupon, auth.RoleAdmin))
		v1.DELETE("/coupons/delete/:id", m.Authorize(h.DeleteCoupon, auth.RoleAdmin))
		v1.GET("/coupons/list", m.Authorize(h.ListCoupons, auth.RoleAdmin))

		v1.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser))

		v1.POST("/orders/create", m.Authorize(h.CreateOrder, auth.RoleUser))
		v1.GET("/orders/list", m.Authorize(h.ListOrders, auth.RoleUser))
		v1.GET("/orders/view/:id", m.Authorize(h.GetOrder, auth.RoleUser))

		v1.GET("/notifications/list", m.Authorize(h.ListNotifications, auth.RoleUser))
		v1.PUT("/notifications/read/:id", m.Authorize(h.MarkNotificationRead, auth.RoleUser))
		v1.GET("/notifications/preferences", m.Authorize(h.GetPreferences, auth.RoleUser))
		v1.PUT("/notifications/preferences", m.Authorize(h.UpdatePreferences, auth.RoleUser))
		v1.POST("/notifications/tokens", m.Authorize(h.RegisterToken, auth.RoleUser))
		v1.DELETE("/notifications/tokens", m.Authorize(h.RemoveToken, auth.RoleUser))
		v1.GET("/notifications/test-push", m.Authorize(h.TestPush, auth.RoleAdmin))

		v1.POST("/wishlist/add/:productID", m.Authorize(h.AddToWishlist, auth.RoleUser))
		v1.DELETE("/wishlist/remove/:productID", m.Authorize(h.RemoveFromWishlist, auth.RoleUser))
		v1.GET("/wishlist/list", m.Authorize(h.ListWishlist, auth.RoleUser))

		v1.POST("/addresses/create", m.Authorize(h.CreateAddress, auth.RoleUser))
		v1.PUT("/addresses/update/:id", m.Authorize(h.UpdateAddress, auth.RoleUser))
		v1.DELETE("/addresses/delete/:id", m.Authorize(h.DeleteAddress, auth.RoleUser))
		v1.GET("/addresses/list", m.Authorize(h.ListAddresses, auth.RoleUser))
	}

	return r
}

func healthCheck(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	fmt.Println("healthCheck handler ", traceId)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
