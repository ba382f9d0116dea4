package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/handler"
	"github.com/cantapp/canteen-core/internal/middleware"
	"github.com/cantapp/canteen-core/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the payment provider
// webhook (which authenticates by HMAC signature instead of JWT).
func RegisterRoutes(e *echo.Echo, webhook *handler.WebhookHandler) {
	e.GET("/healthz", handler.Health)
	e.POST("/v1/webhooks/payments", webhook.PaymentConfirmed)
}

// RegisterAuth registers the authentication endpoints.  Login and
// refresh are open; logout requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1/auth")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("/logout", a.Logout)
}

// RegisterCommerce wires the purchase, wallet, guardian and audit
// surfaces.  Checkout carries the rate limiter on top of JWT auth; every
// other group gets role enforcement matching who may call it.
func RegisterCommerce(
	e *echo.Echo,
	jwtSecret string,
	rateLimit echo.MiddlewareFunc,
	checkout *handler.CheckoutHandler,
	canteen *handler.CanteenHandler,
	wallet *handler.WalletHandler,
	guardian *handler.GuardianHandler,
	audit *handler.AuditHandler,
) {
	// Checkout: guardians and students, rate limited per user.
	orders := e.Group("/v1/orders")
	orders.Use(middleware.JWTAuth(jwtSecret))
	orders.Use(middleware.RequireRole(model.RoleGuardian, model.RoleStudent))
	orders.Use(rateLimit)
	orders.POST("", checkout.Create)

	// Staff counter flow: list, scan, deliver.
	staff := e.Group("/v1/canteen")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole(model.RoleStaff))
	staff.GET("/orders", canteen.ListOrders)
	staff.GET("/orders/scan/:hash", canteen.Scan)
	staff.POST("/orders/:id/deliver", canteen.Deliver)

	// Wallet reads and history: the student or a linked guardian.
	wallets := e.Group("/v1/students/:studentId/wallet")
	wallets.Use(middleware.JWTAuth(jwtSecret))
	wallets.Use(middleware.RequireRole(model.RoleGuardian, model.RoleStudent))
	wallets.GET("", wallet.Get)
	wallets.GET("/transactions", wallet.History)
	wallets.POST("/recharges", wallet.CreateRechargeIntent)

	// Direct recharges: linked guardians or the school admin.
	credits := e.Group("/v1/students/:studentId/wallet")
	credits.Use(middleware.JWTAuth(jwtSecret))
	credits.Use(middleware.RequireRole(model.RoleGuardian, model.RoleSchoolAdmin))
	credits.POST("/recharges/direct", wallet.DirectRecharge)

	// Parental controls: guardians only.
	controls := e.Group("/v1/students/:studentId/wallet")
	controls.Use(middleware.JWTAuth(jwtSecret))
	controls.Use(middleware.RequireRole(model.RoleGuardian))
	controls.PUT("/controls", wallet.SetControls)
	controls.PUT("/safety", wallet.SetSafetySwitch)

	// Restriction blocklists: guardians only.
	restrictions := e.Group("/v1/students/:studentId/restrictions")
	restrictions.Use(middleware.JWTAuth(jwtSecret))
	restrictions.Use(middleware.RequireRole(model.RoleGuardian))
	restrictions.GET("", guardian.List)
	restrictions.POST("", guardian.Add)
	restrictions.DELETE("/products/:productId", guardian.RemoveProduct)
	restrictions.DELETE("/categories/:category", guardian.RemoveCategory)

	// Audit viewer and chain verification: school admins only.
	audits := e.Group("/v1/audit")
	audits.Use(middleware.JWTAuth(jwtSecret))
	audits.Use(middleware.RequireRole(model.RoleSchoolAdmin))
	audits.GET("/logs", audit.List)
	audits.POST("/verify", audit.Verify)
}
