// Package app wires repositories, services and transports into a runnable bot.
package app

import (
	"context"
	"fmt"
	"net/http"

	"attendance/internal/config"
	"attendance/internal/handler"
	"attendance/internal/mattermost"
	"attendance/internal/middleware"
	"attendance/internal/repository"
	"attendance/internal/service"
	"attendance/internal/session"
	"attendance/internal/websocket"
	"attendance/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

const sessionPrefix = "attendance:session:"

// App holds the wired components. Build it once per process.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	Employees     service.EmployeeService
	Invites       service.InviteService
	Absences      service.AbsenceService
	Notifications service.NotificationService
	Statistics    service.StatisticsService
	Workflow      *workflow.Orchestrator

	Hub      *websocket.Hub
	Signer   *middleware.ActionSigner
	Renderer *mattermost.Renderer
	Client   *mattermost.Client
	Sessions session.Store

	redis *redis.Client
}

// New builds the application on an open database. Transport overrides the Mattermost
// transport when non-nil.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, transport service.Transport) (*App, error) {
	a := &App{Config: cfg, DB: db}
	secret := []byte(cfg.JWTSecret)
	loc := cfg.Location()
	opts := []service.Option{service.WithLocation(loc)}

	sessions, err := a.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions

	a.Signer = middleware.NewActionSigner(secret, cfg.ActionTTL)
	a.Renderer = mattermost.NewRenderer(cfg.Mattermost.BotURL, a.Signer)
	a.Client = mattermost.NewClient(cfg.Mattermost.URL, cfg.Mattermost.BotToken)
	if transport == nil {
		transport = mattermost.NewTransport(a.Client, a.Renderer)
	}

	// Repository -> Service
	txManager := repository.NewTransactionManager(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	a.Invites = service.NewInviteService(inviteRepo, employeeRepo, txManager, opts...)
	a.Employees = service.NewEmployeeService(employeeRepo, a.Invites, txManager)
	a.Absences = service.NewAbsenceService(absenceRepo, historyRepo, employeeRepo, txManager, opts...)
	a.Notifications = service.NewNotificationService(notificationRepo, employeeRepo, transport, opts...)
	a.Statistics = service.NewStatisticsService(repository.NewStatisticsRepository(db), absenceRepo, employeeRepo, opts...)

	a.Hub = websocket.NewHub(cfg.CORSOrigins)
	a.Workflow = workflow.New(a.Employees, a.Invites, a.Absences, a.Notifications, a.Sessions, a.Hub, workflow.Config{
		InviteTTL: cfg.InviteTTL,
		Location:  loc,
	})
	return a, nil
}

func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	if !a.Config.Redis.Enabled {
		return session.NewMemoryStore(a.Config.SessionTTL), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return session.NewRedisStore(a.redis, sessionPrefix, a.Config.SessionTTL), nil
}

// Router returns the HTTP surface: REST API, Mattermost webhooks, live events, metrics.
func (a *App) Router() *gin.Engine {
	secret := []byte(a.Config.JWTSecret)

	if a.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = a.Config.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(a.Hub, c, secret)
	})

	root := router.Group("")
	handler.NewEmployeeHandler(a.Employees, a.Workflow, secret).RegisterRoutes(root)
	handler.NewRequestHandler(a.Absences, a.Workflow, secret).RegisterRoutes(root)
	handler.NewStatisticsHandler(a.Statistics, secret, a.Config.Location()).RegisterRoutes(root)
	handler.NewMattermostHandler(
		a.Workflow, a.Renderer, a.Signer, a.Client,
		a.Config.Mattermost.BotURL, a.Config.Mattermost.CommandToken,
	).RegisterRoutes(root)

	return router
}

// Close releases connections held outside the database pool.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
