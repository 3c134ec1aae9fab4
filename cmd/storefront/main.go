package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/selva-b/e-com-sub000/handlers"
	"github.com/selva-b/e-com-sub000/internal/addresses"
	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/cart"
	"github.com/selva-b/e-com-sub000/internal/consul"
	"github.com/selva-b/e-com-sub000/internal/coupons"
	"github.com/selva-b/e-com-sub000/internal/notifications"
	"github.com/selva-b/e-com-sub000/internal/orders"
	"github.com/selva-b/e-com-sub000/internal/products"
	"github.com/selva-b/e-com-sub000/internal/stores/kafka"
	"github.com/selva-b/e-com-sub000/internal/stores/postgres"
	"github.com/selva-b/e-com-sub000/internal/wishlist"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

const serviceName = "storefront"

func main() {
	if err := startApp(); err != nil {
		slog.Error("failed to start app", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("initializing database and running migrations")
	db, err := postgres.OpenDB()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	// Stores
	productConf, err := products.NewConf(db)
	if err != nil {
		return err
	}
	cartConf, err := cart.NewConf(db)
	if err != nil {
		return err
	}
	couponConf, err := coupons.NewConf(db)
	if err != nil {
		return err
	}
	orderConf, err := orders.NewConf(db)
	if err != nil {
		return err
	}
	notificationConf, err := notifications.NewConf(db)
	if err != nil {
		return err
	}
	wishlistConf, err := wishlist.NewConf(db)
	if err != nil {
		return err
	}
	addressConf, err := addresses.NewConf(db)
	if err != nil {
		return err
	}

	// Redis backs the cart cache. The service degrades to DB-only reads if
	// the connection cannot be established.
	var cartCache *cart.Cache
	redisClient := redis.NewClient(&redis.Options{
		Addr: envOr("REDIS_ADDR", "localhost:6379"),
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, cart cache disabled", slog.String(logkey.ERROR, err.Error()))
	} else {
		cartCache = cart.NewCache(redisClient)
	}
	cancelPing()

	// Kafka producer for the order-paid events.
	brokers := strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaConf, err := kafka.NewConf(brokers)
	if err != nil {
		return fmt.Errorf("kafka producer setup failed: %w", err)
	}
	defer kafkaConf.Close()

	// Notification dispatcher, fed by the order-paid topic.
	dispatcher := notifications.NewDispatcher(
		&notificationConf,
		notifications.NewFCMClient(os.Getenv("FCM_SERVER_KEY")),
		&notifications.SMTPSender{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envOr("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "no-reply@storefront.local"),
		},
	)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	consumer, err := kafka.NewConsumer(brokers, kafka.ConsumerGroup, kafka.TopicOrderPaid)
	if err != nil {
		return fmt.Errorf("kafka consumer setup failed: %w", err)
	}
	defer consumer.Close()
	go consumer.Run(consumerCtx, dispatcher.HandleOrderPaid)
	slog.Info("notification consumer started", slog.String("Topic", kafka.TopicOrderPaid))

	// JWT verification keys. The private key is optional; token issuance
	// normally belongs to the identity service.
	publicPEM, err := os.ReadFile(envOr("JWT_PUBLIC_KEY_FILE", "pubkey.pem"))
	if err != nil {
		return fmt.Errorf("failed to read jwt public key: %w", err)
	}
	var privatePEM []byte
	if privFile := os.Getenv("JWT_PRIVATE_KEY_FILE"); privFile != "" {
		privatePEM, err = os.ReadFile(privFile)
		if err != nil {
			return fmt.Errorf("failed to read jwt private key: %w", err)
		}
	}
	keys, err := auth.NewKeysFromPEM(publicPEM, privatePEM)
	if err != nil {
		return fmt.Errorf("failed to parse jwt keys: %w", err)
	}

	// Consul registration is best effort: local development works without an
	// agent running.
	consulClient, err := consul.NewClient()
	if err != nil {
		slog.Warn("consul client setup failed", slog.String(logkey.ERROR, err.Error()))
		consulClient = nil
	}
	host := envOr("SERVICE_HOST", "localhost")
	port, err := strconv.Atoi(envOr("SERVICE_PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid SERVICE_PORT: %w", err)
	}
	if consulClient != nil {
		serviceId := serviceName + "-" + uuid.NewString()
		if err := consul.RegisterService(consulClient, serviceName, serviceId, host, port); err != nil {
			slog.Warn("consul registration failed", slog.String(logkey.ERROR, err.Error()))
		} else {
			slog.Info("registered with consul", slog.String("ServiceID", serviceId))
		}
	}

	h := handlers.NewHandler(productConf, cartConf, cartCache, couponConf, orderConf,
		notificationConf, dispatcher, wishlistConf, addressConf, kafkaConf, consulClient)

	api := http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handlers.API(envOr("ENDPOINT_PREFIX", "/v1"), keys, h),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverError := make(chan error, 1)
	go func() {
		slog.Info("storefront listening", slog.String("Addr", api.Addr))
		serverError <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverError:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("shutdown started", slog.String("Signal", sig.String()))
		stopConsumer()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			if cerr := api.Close(); cerr != nil {
				return fmt.Errorf("failed to force close server: %w", errors.Join(err, cerr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("shutdown complete")
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
