package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sokohub/sokohub-backend/api/controllers"
	"github.com/sokohub/sokohub-backend/api/middleware"
	"github.com/sokohub/sokohub-backend/internal/auth"
	"github.com/sokohub/sokohub-backend/internal/cart"
	checkoutsvc "github.com/sokohub/sokohub-backend/internal/checkout"
	"github.com/sokohub/sokohub-backend/internal/notifications"
	"github.com/sokohub/sokohub-backend/internal/orders"
	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/internal/users"
	"github.com/sokohub/sokohub-backend/internal/wallet"
	"github.com/sokohub/sokohub-backend/pkg/auth/session"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/metrics"
	"github.com/sokohub/sokohub-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface is built from.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Auth          auth.Service
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Wallet        wallet.Service
	Notifications notifications.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	otpPolicy := middleware.NewRateLimitPolicy("otp", cfg.AuthRateLimit.OTPWindow, cfg.AuthRateLimit.OTPIPLimit)
	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	otpLimit, idempotency := passThrough, passThrough
	if deps.Redis != nil {
		otpLimit = middleware.RateLimit(otpPolicy, deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.Route("/otp", func(r chi.Router) {
				r.Use(otpLimit)
				r.Post("/verify", controllers.AuthVerifyOTP(deps.Auth, logg))
				r.Post("/resend", controllers.AuthResendOTP(deps.Auth, logg))
			})
			r.With(authenticate).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Get("/products", controllers.ProductList(deps.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(deps.Products, logg))
		r.Get("/products/{productId}/stock", controllers.ProductStock(deps.Products, logg))
		r.Get("/categories", controllers.CategoryList(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(idempotency)

			r.Get("/me", controllers.MeProfile(deps.Users, logg))
			r.Patch("/me", controllers.MeUpdateProfile(deps.Users, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationsList(deps.Notifications, logg))
				r.Get("/summary", controllers.NotificationsSummary(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.NotificationMarkRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.NotificationsMarkAllRead(deps.Notifications, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleCustomer, logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.CartView(deps.Cart, logg))
					r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
					r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
					r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
				})

				r.Post("/checkout", controllers.CheckoutCart(deps.Checkout, logg))
				r.Post("/checkout/products/{productId}", controllers.CheckoutProduct(deps.Checkout, logg))

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.CustomerOrderList(deps.Orders, logg))
					r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
					r.Post("/{orderId}/pay", controllers.OrderPay(deps.Orders, logg))
					r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
					r.Get("/{orderId}/receipt", controllers.OrderReceipt(deps.Orders, logg))
				})

				r.Route("/wallet", func(r chi.Router) {
					r.Get("/", controllers.WalletGet(deps.Wallet, logg))
					r.Post("/request", controllers.WalletRequest(deps.Wallet, logg))
					r.Post("/pay", controllers.WalletPay(deps.Wallet, logg))
					r.Post("/top-up", controllers.WalletTopUp(deps.Wallet, logg))
					r.Get("/transactions", controllers.WalletTransactions(deps.Wallet, logg))
				})
			})

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleVendor, logg))

				r.Get("/dashboard", controllers.VendorDashboard(deps.Products, deps.Orders, logg))
				r.Get("/products", controllers.VendorProductList(deps.Products, logg))
				r.Post("/products", controllers.VendorProductCreate(deps.Products, logg))
				r.Patch("/products/{productId}", controllers.VendorProductUpdate(deps.Products, logg))
				r.Delete("/products/{productId}", controllers.VendorProductDelete(deps.Products, logg))
				r.Post("/categories", controllers.VendorCategoryCreate(deps.Products, logg))

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.VendorOrderList(deps.Orders, logg))
					r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
					r.Post("/{orderId}/approve", controllers.VendorOrderApprove(deps.Orders, logg))
					r.Post("/{orderId}/ship", controllers.VendorOrderShip(deps.Orders, logg))
					r.Post("/{orderId}/deliver", controllers.VendorOrderDeliver(deps.Orders, logg))
					r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
				})
			})
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
