package router

import (
	"github.com/gamekeys/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers of the storefront API
type Handlers struct {
	Auth     *handler.AuthHandler
	Product  *handler.ProductHandler
	Category *handler.CategoryHandler
	Key      *handler.KeyHandler
	Cart     *handler.CartHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	Admin    *handler.AdminHandler
	System   *handler.SystemHandler
}

// Guards are the access middlewares applied per route group
type Guards struct {
	Auth          gin.HandlerFunc // rejects requests without a valid access token
	OptionalAuth  gin.HandlerFunc // reads the token when present
	AdminOnly     gin.HandlerFunc
	AuthRateLimit gin.HandlerFunc // throttles credential endpoints per client IP
}

// StorefrontGroups builds the route groups served under /api/v1
func StorefrontGroups(h Handlers, g Guards) []*DomainGroup {
	auth := NewDomainGroup("auth", "/auth")
	credentials := auth.Group("credentials", "").Use(g.AuthRateLimit)
	credentials.POST("/register", h.Auth.Register).
		POST("/login", h.Auth.Login).
		POST("/refresh", h.Auth.RefreshToken)
	session := auth.Group("session", "").Use(g.Auth)
	session.POST("/logout", h.Auth.Logout).
		GET("/me", h.Auth.GetCurrentUser).
		PUT("/me", h.Auth.UpdateProfile).
		PUT("/password", h.Auth.ChangePassword)

	catalog := NewDomainGroup("catalog", "/catalog").Use(g.OptionalAuth)
	catalog.GET("/products", h.Product.List).
		GET("/products/:id", h.Product.Get).
		GET("/categories", h.Category.List).
		GET("/categories/:id", h.Category.Get)

	cart := NewDomainGroup("cart", "/cart").Use(g.Auth)
	cart.GET("", h.Cart.Get).
		DELETE("", h.Cart.Clear).
		POST("/items", h.Cart.AddItem).
		PUT("/items/:product_id", h.Cart.UpdateItem).
		DELETE("/items/:product_id", h.Cart.RemoveItem)

	orders := NewDomainGroup("orders", "/orders").Use(g.Auth)
	orders.POST("", h.Order.CreateFromCart).
		POST("/direct", h.Order.CreateDirect).
		GET("", h.Order.List).
		GET("/:id", h.Order.Get).
		POST("/:id/cancel", h.Order.Cancel).
		GET("/:id/keys", h.Order.GetKeys).
		POST("/:id/checkout/pix", h.Order.StartCheckout).
		GET("/:id/payment", h.Order.GetPaymentStatus)

	payments := NewDomainGroup("payments", "/payments")
	payments.POST("/webhook/:provider", h.Payment.Webhook)

	admin := NewDomainGroup("admin", "/admin").Use(g.Auth, g.AdminOnly)
	admin.Group("products", "/products").
		POST("", h.Product.Create).
		PUT("/:id", h.Product.Update).
		DELETE("/:id", h.Product.Delete).
		POST("/:id/activate", h.Product.Activate).
		POST("/:id/deactivate", h.Product.Deactivate).
		POST("/:id/cover/upload-url", h.Product.RequestCoverUpload).
		POST("/:id/cover", h.Product.ConfirmCover).
		DELETE("/:id/cover", h.Product.RemoveCover).
		POST("/:id/keys", h.Key.AddKeys).
		GET("/:id/keys", h.Key.ListKeys).
		GET("/:id/stock", h.Key.Stock)
	admin.Group("categories", "/categories").
		POST("", h.Category.Create).
		PUT("/:id", h.Category.Update).
		DELETE("/:id", h.Category.Delete)
	admin.Group("orders", "/orders").
		GET("", h.Order.ListAll).
		GET("/:id", h.Order.Get).
		POST("/:id/cancel", h.Order.Cancel)
	admin.Group("users", "/users").
		GET("", h.Admin.ListUsers).
		GET("/:id", h.Admin.GetUser).
		POST("/:id/enable", h.Admin.EnableUser).
		POST("/:id/disable", h.Admin.DisableUser)
	admin.GET("/dashboard", h.Admin.Dashboard)
	admin.Group("sandbox", "/payments/sandbox").
		POST("/:charge_id/approve", h.Payment.ApproveSandbox).
		POST("/:charge_id/reject", h.Payment.RejectSandbox)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	return []*DomainGroup{auth, catalog, cart, orders, payments, admin, system}
}
