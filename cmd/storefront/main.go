package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/fjod/go_cart/storefront/internal/voucher"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const tokenTTL = 24 * time.Hour

func main() {
	cfg := config.Load()

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "storefront", cfg.OTLPEndpoint)
	if err != nil {
		l.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Server-held carts
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.MongoMaxPoolSize)
	if err != nil {
		l.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())
	if err := repository.CreateCartIndexes(ctx, mongoDB); err != nil {
		l.Fatal("failed to create cart indexes", zap.Error(err))
	}
	cartRepo := repository.NewMongoRepository(mongoDB)
	l.Info("connected to MongoDB", zap.String("uri", cfg.MongoURI))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		l.Fatal("redis connection failed", zap.Error(err))
	}
	cartCache := cache.NewRedisCache(redisClient)
	snapshots := cache.NewRedisSnapshots(redisClient, cfg.SnapshotTTL)

	// Vouchers and orders
	cred := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.PostgresMigrations,
	}
	pgRepo, err := repository.NewRepository(cred)
	if err != nil {
		l.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer pgRepo.Close()
	if err := pgRepo.RunMigrations(cred); err != nil {
		l.Fatal("failed to run Postgres migrations", zap.Error(err))
	}

	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		l.Fatal("failed to open catalog", zap.Error(err))
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrations); err != nil {
		l.Fatal("failed to run catalog migrations", zap.Error(err))
	}

	cartService := service.NewCartService(cartRepo, cartCache, catalogRepo, l)
	voucherService := voucher.NewService(pgRepo, l)

	pub := publisher.NewPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
	defer pub.Close()

	cleaner := poller.NewPoller(cartRepo, cartCache, l, cfg.KafkaTopic, cfg.KafkaBrokers...)
	defer cleaner.Close()
	go cleaner.Run(ctx)

	auth := session.NewAuthenticator(cfg.JWTSecret, tokenTTL)
	tracker := session.NewTracker(auth, session.NewBroker())

	manager := storefront.NewManager(ctx, snapshots, tracker, cartService, cfg.SessionIdleTTL, l)
	defer manager.Close()

	checkoutService := checkout.NewService(pgRepo, voucherService, pub, cartService, l)

	router := h.NewRouter(h.Handlers{
		Session:  h.NewSessionHandler(manager, tracker, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(manager, catalogRepo, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(manager, checkoutService, voucherService, cfg.RequestTimeout, l),
		Orders:   h.NewOrdersHandler(manager, pgRepo, cfg.RequestTimeout, l),
		Products: h.NewProductHandler(catalogRepo, cfg.RequestTimeout),
	}, cfg.RequestTimeout, l)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("storefront HTTP listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("server error", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		l.Fatal("failed to listen", zap.Error(err))
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("storefront", healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	go func() {
		l.Info("storefront gRPC health listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			l.Error("grpc serve failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	l.Info("shutting down storefront")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	l.Info("storefront stopped")
}
