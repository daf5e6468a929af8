package main

import (
	"context"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/dispatchlite/internal/events"
	"github.com/example/dispatchlite/internal/feed"
	appmiddleware "github.com/example/dispatchlite/internal/http/middleware"
	"github.com/example/dispatchlite/internal/ride/domain"
	"github.com/example/dispatchlite/internal/ride/geo"
	"github.com/example/dispatchlite/internal/ride/handler"
	rideservice "github.com/example/dispatchlite/internal/ride/service"
	"github.com/example/dispatchlite/internal/ride/store"
	"github.com/example/dispatchlite/internal/session"
	"github.com/example/dispatchlite/pkg/observability"
)

type appConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	RedisAddr      string
	NATSURL        string
	JWTSecret      string
	SessionTTL     time.Duration
	SeedRides      int
	SeedPassengers int
	SeedDrivers    int
	SeedRegion     domain.Region
	AuthBrowsing   bool
	ReadRate       float64
	ReadBurst      float64
	WriteRate      float64
	WriteBurst     float64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("dispatch-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "dispatch-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("dispatchservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	var rideStore domain.Store
	if redisClient != nil {
		rideStore = store.NewRedisStore(redisClient, "")
	} else {
		rideStore = store.NewMemoryStore()
	}

	hub := feed.NewHub(64)
	publisher := events.Fanout{events.NewNATSPublisher(natsConn, ""), hub}

	engine := geo.New(rideStore)
	svc := rideservice.New(rideStore, engine, publisher, domain.SystemClock{})

	registry := session.NewRegistry([]byte(cfg.JWTSecret), cfg.SessionTTL, domain.SystemClock{})
	seed(ctx, logger, registry, rideStore, cfg)

	rideHTTP := handler.NewHTTP(svc, registry, logger.Named("rides"), handler.Config{
		AuthenticatedBrowsing: cfg.AuthBrowsing,
	})
	sessionHTTP := session.NewHTTP(registry, logger.Named("sessions"))

	limiter := appmiddleware.NewRateLimiter(redisClient,
		appmiddleware.RateConfig{Rate: cfg.ReadRate, Burst: cfg.ReadBurst},
		appmiddleware.RateConfig{Rate: cfg.WriteRate, Burst: cfg.WriteBurst},
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Mount("/rides", rideHTTP.Router())
		api.Mount("/", sessionHTTP.Router())
	})
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		grpcServer = grpc.NewServer()
		feed.RegisterRideFeedServer(grpcServer, feed.NewServer(hub))
		go func() {
			logger.Info("ride feed listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("dispatch service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func seed(ctx context.Context, logger *zap.Logger, registry *session.Registry, rideStore domain.Store, cfg appConfig) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	session.SeedDirectory(registry, cfg.SeedPassengers, cfg.SeedDrivers, rng)

	if cfg.SeedRides <= 0 {
		return
	}
	var passengers, drivers []uuid.UUID
	for _, p := range registry.Passengers() {
		passengers = append(passengers, p.ID)
	}
	for _, d := range registry.Drivers() {
		drivers = append(drivers, d.ID)
	}
	if err := store.Seed(ctx, rideStore, cfg.SeedRegion, cfg.SeedRides, passengers, drivers, rng); err != nil {
		logger.Warn("ride seeding failed", zap.Error(err))
		return
	}
	logger.Info("seeded rides", zap.Int("count", cfg.SeedRides))
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:       os.Getenv("GRPC_ADDR"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NATSURL:        os.Getenv("NATS_URL"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret"),
		SessionTTL:     time.Duration(parseIntEnv("SESSION_TTL_MIN", 0)) * time.Minute,
		SeedRides:      parseIntEnv("SEED_RIDES", 50),
		SeedPassengers: parseIntEnv("SEED_PASSENGERS", 5),
		SeedDrivers:    parseIntEnv("SEED_DRIVERS", 2),
		SeedRegion: domain.Region{
			Latitude:       parseFloatEnv("SEED_LATITUDE", 37.78),
			Longitude:      parseFloatEnv("SEED_LONGITUDE", -122.43),
			LatitudeDelta:  parseFloatEnv("SEED_LATITUDE_DELTA", 0.0922),
			LongitudeDelta: parseFloatEnv("SEED_LONGITUDE_DELTA", 0.0421),
		},
		AuthBrowsing: parseBoolEnv("AUTH_BROWSING", false),
		ReadRate:     parseFloatEnv("RATE_READ_RPS", 50),
		ReadBurst:    parseFloatEnv("RATE_READ_BURST", 100),
		WriteRate:    parseFloatEnv("RATE_WRITE_RPS", 10),
		WriteBurst:   parseFloatEnv("RATE_WRITE_BURST", 20),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}
