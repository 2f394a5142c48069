// Package server assembles the HTTP API from the domain modules.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/middleware"
	"sportclub/internal/modules/auth"
	"sportclub/internal/modules/booking"
	membermodule "sportclub/internal/modules/member"
	quotamodule "sportclub/internal/modules/quota"
	"sportclub/internal/modules/roster"
	schedulemodule "sportclub/internal/modules/schedule"
	"sportclub/internal/notification"
	"sportclub/internal/pkg/jwt"
	"sportclub/internal/pkg/response"
	"sportclub/internal/pkg/validator"
	"sportclub/internal/realtime"
)

// App is the wired service. Router serves HTTP; the rest is exposed for
// background jobs and tests.
type App struct {
	Router  *gin.Engine
	Hub     *realtime.Hub
	Engine  *booking.Engine
	Quotas  *quotamodule.Service
	Limiter *middleware.UserRateLimiter
	JWT     *jwt.Service
}

type Option func(*options)

type options struct {
	notifier notification.Dispatcher
	engine   []booking.Option
}

func WithNotifier(d notification.Dispatcher) Option {
	return func(o *options) { o.notifier = d }
}

// WithEngineOptions passes extra options to the booking engine, e.g. a fixed
// clock in tests.
func WithEngineOptions(opts ...booking.Option) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}

func New(cfg *config.Config, db *gorm.DB, opts ...Option) *App {
	o := &options{notifier: notification.NewLogDispatcher()}
	for _, opt := range opts {
		opt(o)
	}

	validator.RegisterBinding()

	hub := realtime.NewHub()
	jwtService := jwt.New(cfg.JWTSecret, cfg.JWTTTL)
	limiter := middleware.NewUserRateLimiter(cfg.BookingRateEvery, cfg.BookingRateBurst)

	quotaRepo := quota.NewRepository(db, cfg.DefaultMonthlyClasses)
	memberRepo := member.NewRepository(db)

	engine := booking.NewEngine(db, quotaRepo,
		booking.Policy{Location: cfg.Location, CancelCutoff: cfg.CancelCutoff},
		append([]booking.Option{booking.WithNotifier(o.notifier), booking.WithPublisher(hub)}, o.engine...)...,
	)
	scheduleService := schedulemodule.NewService(schedule.NewRepository(db), hub, cfg.MaxRangeDays)
	quotaService := quotamodule.NewService(db, quotaRepo, hub, cfg.Location)
	memberService := membermodule.NewService(db, quotaRepo, cfg.Location)
	authService := auth.NewService(memberRepo, jwtService)
	rosterService := roster.NewService(engine, scheduleService, memberRepo)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		if err := database.Ping(db); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/changes", middleware.JWTAuth(jwtService, true), func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request, c.GetInt64("user_id"))
	})

	v1 := r.Group("/api/v1")
	auth.NewHandler(authService).RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(jwtService))
	staff := protected.Group("")
	staff.Use(middleware.StaffOnly())
	admin := protected.Group("/admin")
	admin.Use(middleware.AdminOnly())

	auth.NewHandler(authService).RegisterProtectedRoutes(protected)
	schedulemodule.NewHandler(scheduleService, cfg.Location).RegisterRoutes(protected, staff)
	booking.NewHandler(engine).RegisterRoutes(protected, staff, limiter.Middleware())
	quotamodule.NewHandler(quotaService).RegisterRoutes(protected, admin)
	membermodule.NewHandler(memberService).RegisterRoutes(admin)
	roster.NewHandler(rosterService, cfg.Location).RegisterRoutes(staff)

	return &App{
		Router:  r,
		Hub:     hub,
		Engine:  engine,
		Quotas:  quotaService,
		Limiter: limiter,
		JWT:     jwtService,
	}
}
