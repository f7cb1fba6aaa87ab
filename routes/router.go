package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/config"
	"github.com/habitly/habitd/controllers"
	"github.com/habitly/habitd/middleware"
	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Location  *time.Location
	Now       func() time.Time
	Logs      *services.LogService
	Habits    *services.HabitService
	Goals     *services.GoalService
	Reminders *services.ReminderService
	Dashboard *services.DashboardService
}

// NewDeps builds the services on top of db.
func NewDeps(db *gorm.DB, loc *time.Location, log *zap.Logger) Deps {
	streaks := services.NewStreakUpdater(log)
	return Deps{
		DB:        db,
		Log:       log,
		Location:  loc,
		Now:       time.Now,
		Logs:      services.NewLogService(db, streaks, loc, log),
		Habits:    services.NewHabitService(db, log),
		Goals:     services.NewGoalService(db, log),
		Reminders: services.NewReminderService(db),
		Dashboard: services.NewDashboardService(db, loc, log),
	}
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(requestID())
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// Wildcard origins cannot carry credentials.
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
			return
		}
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	now := d.Now
	if now == nil {
		now = time.Now
	}
	tokenTTL := time.Duration(cfg.JWTTTLHours) * time.Hour

	authController := controllers.NewAuthController(d.DB, tokenTTL, d.Log)
	habitController := controllers.NewHabitController(d.Habits, now, d.Log)
	goalController := controllers.NewGoalController(d.Goals, d.Log)
	logController := controllers.NewHabitLogController(d.Logs, d.Habits, now, d.Log)
	reminderController := controllers.NewReminderController(d.Reminders, d.Log)
	dashboardController := controllers.NewDashboardController(d.Dashboard, d.Location, now, d.Log)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/habits", habitController.List)
	protected.POST("/habits", habitController.Create)
	protected.GET("/habits/:id", habitController.Get)
	protected.PATCH("/habits/:id", habitController.Update)
	protected.PUT("/habits/:id", habitController.Update)
	protected.DELETE("/habits/:id", habitController.Delete)

	protected.GET("/goals", goalController.List)
	protected.POST("/goals", goalController.Create)
	protected.GET("/goals/:id", goalController.Get)
	protected.PATCH("/goals/:id", goalController.Update)
	protected.PUT("/goals/:id", goalController.Update)
	protected.DELETE("/goals/:id", goalController.Delete)

	protected.GET("/habit-logs", logController.List)
	protected.POST("/habit-logs", logController.Create)

	protected.GET("/reminders", reminderController.List)
	protected.POST("/reminders", reminderController.Create)
	protected.GET("/reminders/:id", reminderController.Get)
	protected.PATCH("/reminders/:id", reminderController.Update)
	protected.DELETE("/reminders/:id", reminderController.Delete)

	protected.GET("/dashboard", dashboardController.Get)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

const requestIDHeader = "X-Request-ID"

// requestID tags each request with an id, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}
