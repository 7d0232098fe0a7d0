package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qline-app/qline-backend/api/controllers"
	"github.com/qline-app/qline-backend/api/middleware"
	"github.com/qline-app/qline-backend/internal/auth"
	"github.com/qline-app/qline-backend/internal/businesses"
	"github.com/qline-app/qline-backend/internal/devices"
	"github.com/qline-app/qline-backend/internal/notifications"
	"github.com/qline-app/qline-backend/internal/queue"
	"github.com/qline-app/qline-backend/internal/users"
	"github.com/qline-app/qline-backend/pkg/auth/session"
	"github.com/qline-app/qline-backend/pkg/config"
	"github.com/qline-app/qline-backend/pkg/db"
	"github.com/qline-app/qline-backend/pkg/logger"
	"github.com/qline-app/qline-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	usersService users.Service,
	businessesService businesses.Service,
	queueService queue.Service,
	notificationsService notifications.Service,
	devicesService *devices.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(adminRegisterService, authService, cfg, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	// Public directory: anyone can browse approved businesses without an
	// account. Joining a queue requires auth.
	r.Route("/api/v1/businesses", func(r chi.Router) {
		r.Get("/", controllers.BrowseBusinesses(businessesService, logg))
		r.Get("/{businessId}", controllers.BusinessListing(businessesService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/me", func(r chi.Router) {
			r.Get("/", controllers.MeProfile(usersService, logg))
			r.Patch("/", controllers.MeUpdateProfile(usersService, logg))
			r.Get("/queues", controllers.MyQueues(queueService, logg))
			r.Get("/queues/history", controllers.QueueHistory(queueService, logg))
		})

		r.Post("/v1/businesses/{businessId}/queue/join", controllers.JoinQueue(queueService, logg))
		r.Route("/v1/queue/entries/{entryId}", func(r chi.Router) {
			r.Get("/", controllers.QueueEntryStatus(queueService, logg))
			r.Post("/leave", controllers.LeaveQueue(queueService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/v1/devices", func(r chi.Router) {
			r.Post("/", controllers.RegisterDevice(devicesService, logg))
			r.Delete("/", controllers.RemoveDevice(devicesService, logg))
		})

		// Owner routes stay open to any authenticated user: registering a
		// first business is what promotes a customer to owner, and every
		// operation re-checks ownership in the service layer.
		r.Route("/v1/owner", func(r chi.Router) {
			r.Route("/businesses", func(r chi.Router) {
				r.Post("/", controllers.OwnerRegisterBusiness(businessesService, logg))
				r.Get("/", controllers.OwnerListBusinesses(businessesService, logg))
				r.Patch("/{businessId}", controllers.OwnerUpdateBusiness(businessesService, logg))
				r.Get("/{businessId}/queue", controllers.OwnerQueueState(queueService, logg))
				r.Post("/{businessId}/queue/open", controllers.OwnerToggleQueue(businessesService, true, logg))
				r.Post("/{businessId}/queue/close", controllers.OwnerToggleQueue(businessesService, false, logg))
				r.Post("/{businessId}/queue/serve-next", controllers.OwnerServeNext(queueService, logg))
			})
			r.Post("/queue/entries/{entryId}/remove", controllers.OwnerRemoveEntry(queueService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/businesses", func(r chi.Router) {
			r.Get("/pending", controllers.AdminListPendingBusinesses(businessesService, logg))
			r.Post("/{businessId}/approve", controllers.AdminApproveBusiness(businessesService, logg))
			r.Post("/{businessId}/reject", controllers.AdminRejectBusiness(businessesService, logg))
		})
	})

	return r
}
