package cmd

import (
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/vibast-solutions/ms-go-tracker/app/controller"
	"github.com/vibast-solutions/ms-go-tracker/app/middleware"
	"github.com/vibast-solutions/ms-go-tracker/app/repository"
	"github.com/vibast-solutions/ms-go-tracker/app/service"
	"github.com/vibast-solutions/ms-go-tracker/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server for the job application tracking service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)

	tokens := service.NewTokenService(tokenRepo)
	mailer := service.NewMailer(cfg)
	userAuthService := service.NewUserAuthService(db, userRepo, tokens, mailer, cfg)
	applicationService := service.NewApplicationService(db, applicationRepo)

	startHTTPServer(cfg, userAuthService, applicationService)
}

func startHTTPServer(cfg *config.Config, userAuthService service.UserAuthService, applicationService service.ApplicationService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	userAuthController := controller.NewUserAuthController(userAuthService)
	applicationController := controller.NewApplicationController(applicationService)
	authMiddleware := middleware.NewAuthMiddleware(userAuthService)

	api := e.Group("/api/v1")
	api.POST("/user/register", userAuthController.Register)
	api.POST("/login", userAuthController.Login)
	api.POST("/refresh-token", userAuthController.RefreshToken)
	api.POST("/verify-email", userAuthController.VerifyEmail)
	api.POST("/forgot-password", userAuthController.ForgotPassword)
	api.POST("/reset-password", userAuthController.ResetPassword)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth)
	protected.GET("/user/me", userAuthController.Me)
	protected.DELETE("/user/me", userAuthController.DeleteAccount)
	protected.POST("/application", applicationController.Create)
	protected.GET("/application", applicationController.List)
	protected.GET("/application/:id", applicationController.Get)
	protected.PATCH("/application/:id", applicationController.Update)
	protected.DELETE("/application/:id", applicationController.Delete)
	protected.POST("/application/status", applicationController.AppendStatus)
	protected.GET("/application/:id/history", applicationController.History)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", cfg.Logging.Format)
	}

	return nil
}
