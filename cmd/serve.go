package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-course-checkout/app/controller"
	checkoutgrpc "github.com/vibast-solutions/ms-go-course-checkout/app/grpc"
	"github.com/vibast-solutions/ms-go-course-checkout/app/middleware"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) API and the gRPC health endpoint for the checkout service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication(appOptions{withNotifier: true})
	defer cleanup()
	cfg := app.cfg

	if cfg.Auth.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required to serve buyer endpoints")
	}
	if cfg.Midtrans.ServerKey == "" {
		logrus.Warn("MIDTRANS_SERVER_KEY is empty, gateway calls and signature checks will fail")
	}

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	transactionController := controller.NewTransactionController(app.transactionService)
	rateLimiter := middleware.NewRateLimiter(app.redis, cfg.App.ServiceName+":ratelimit:", cfg.Checkout.RateLimitWindow, app.metrics)

	e := setupHTTPServer(app, transactionController, rateLimiter, echoInternalAuthMiddleware)
	healthReporter := checkoutgrpc.NewHealthReporter(cfg.App.ServiceName, app.db)
	grpcSrv, lis := setupGRPCServer(cfg, healthReporter, grpcInternalAuthMiddleware)

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	healthReporter.Check(healthCtx)
	go healthReporter.Run(healthCtx, 15*time.Second)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopHealth()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	app *application,
	transactionController *controller.TransactionController,
	rateLimiter *middleware.RateLimiter,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
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

	e.GET("/health", transactionController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	jwtAuth := middleware.JWTAuth(app.cfg.Auth.JWTSecret)

	transactions := e.Group("/transactions")
	transactions.POST("/checkout", transactionController.Checkout, jwtAuth, rateLimiter.PerBuyer())
	transactions.POST("/webhook/midtrans", transactionController.MidtransWebhook)
	transactions.GET("/:orderId", transactionController.GetTransaction, jwtAuth)

	internal := e.Group("/internal", internalAuthMiddleware.RequireInternalAccess(app.cfg.App.ServiceName))
	internal.GET("/transactions/:orderId", transactionController.InternalGetTransaction)
	internal.GET("/transactions/:orderId/notifications", transactionController.InternalListNotifications)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	healthReporter *checkoutgrpc.HealthReporter,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			checkoutgrpc.RecoveryInterceptor(),
			checkoutgrpc.RequestIDInterceptor(),
			checkoutgrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(cfg.App.ServiceName),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthReporter.Server())
	reflection.Register(grpcSrv)

	return grpcSrv, lis
}
