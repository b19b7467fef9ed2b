package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/handlers"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/authcookie"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/config"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/credentials"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/database"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/oauth"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/passwords"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/sessions"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/tokens"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/users"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/logger"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/metrics"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/middleware"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		if cfg.Server.IsProduction() {
			logger.Fatalf("JWT_SECRET must be set in production")
		}
		cfg.JWT.Secret = "dev-only-insecure-secret"
		logger.Warnf("JWT_SECRET not set; using an insecure development secret")
	}
	logger.Infof("config loaded: store=%s mongo=%v postgres=%v redis=%v google=%v env=%s",
		cfg.Store.Driver, cfg.MongoDB.URI != "", cfg.Postgres.DSN != "", cfg.Redis.Host != "", cfg.Google.Enabled(), cfg.Server.Environment)

	// Sentry error tracking
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
		}); err != nil {
			logger.Errorf("sentry init failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	// Connect to Redis early so sessions, the denylist and the rate limiter can use it
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = c.Close()
		} else {
			rdb = c
			defer func() { _ = rdb.Close() }()
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient = connectMongo(ctx, cfg)
		if mongoClient != nil {
			defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		}
	}

	userRepo, err := buildUserRepository(ctx, cfg, mongoClient)
	if err != nil {
		logger.Fatalf("credential store unavailable: %v", err)
	}
	userSvc := users.NewService(userRepo)

	var sessionRepo sessions.Repository
	switch {
	case rdb != nil:
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
		logger.Infof("Using Redis for session storage")
	case mongoClient != nil:
		repo := sessions.NewMongoRepository(mongoClient.Database(cfg.MongoDB.Database).Collection("sessions"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("session indexes: %v", err)
		}
		sessionRepo = repo
		logger.Infof("Using MongoDB for session storage")
	default:
		sessionRepo = sessions.NewMemoryRepository()
		logger.Warnf("Using in-memory session storage; sessions are lost on restart")
	}
	sessionsSvc := sessions.NewService(sessionRepo, cfg.Session.TTL)
	denylist := sessions.NewDenylist(rdb)

	tokenSvc := tokens.NewService(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	credSvc, err := credentials.NewService(userSvc, passwords.NewHasher(cfg.Bcrypt.Cost), tokenSvc)
	if err != nil {
		logger.Fatalf("credential service: %v", err)
	}
	cookies := authcookie.NewPolicy(cfg.Server.IsProduction(), cfg.Server.BasePath, cfg.Session.CookieName)
	federation := oauth.NewFederation(userSvc)

	gin.SetMode(gin.ReleaseMode)
	if !cfg.Server.IsProduction() {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(logger.GinMiddleware(), gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint: 200 only when the stores answer
	r.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		if mongoClient != nil {
			deps["mongo"] = mongoClient.Ping(rctx, nil) == nil
			ready = ready && deps["mongo"]
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(rctx).Err() == nil
			ready = ready && deps["redis"]
		}
		if pg, ok := userRepo.(interface{ Ping(context.Context) error }); ok {
			deps["postgres"] = pg.Ping(rctx) == nil
			ready = ready && deps["postgres"]
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limit = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	gate := middleware.AuthMiddleware(
		middleware.NewTokenResolver(tokenSvc, cookies.TokenName, denylist),
		middleware.NewSessionResolver(sessionsSvc, cookies, federation),
	)

	root := r.Group(cfg.Server.BasePath)
	handlers.NewAuthHandler(handlers.AuthDeps{
		Credentials: credSvc,
		Users:       userSvc,
		Tokens:      tokenSvc,
		Sessions:    sessionsSvc,
		Denylist:    denylist,
		Cookies:     cookies,
		Gate:        gate,
		Limit:       limit,
	}).Register(root)

	if cfg.Google.Enabled() {
		strategy, err := oauth.NewStrategy(ctx, oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
			Scopes:       cfg.Google.Scopes,
			Issuer:       cfg.Google.Issuer,
			UserInfoURL:  cfg.Google.UserInfoURL,
			Timeout:      cfg.Google.Timeout,
		})
		if err != nil {
			logger.Warnf("google sign-in disabled: %v", err)
		} else {
			handlers.NewOAuthHandler(strategy, federation, sessionsSvc, cookies,
				cfg.Google.SuccessRedirect, cfg.Google.FailureRedirect).Register(root)
			logger.Infof("google sign-in enabled (callback=%s)", cfg.Google.CallbackURL)
		}
	} else {
		logger.Infof("google sign-in not configured")
	}

	handlers.RegisterSwagger(root)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting auth service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// connectMongo retries with backoff to tolerate startup races with the database container.
func connectMongo(ctx context.Context, cfg *config.Config) *mongo.Client {
	const maxAttempts = 5
	backoff := time.Second
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			return client
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil
}

// buildUserRepository selects the credential store named by STORE_DRIVER.
func buildUserRepository(ctx context.Context, cfg *config.Config, mongoClient *mongo.Client) (users.UserRepository, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, errors.New("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
		db, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Timeout)
		if err != nil {
			return nil, err
		}
		repo := users.NewPostgresUserRepository(db)
		if err := repo.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate users: %w", err)
		}
		logger.Infof("Using PostgreSQL credential store")
		return repo, nil
	case "memory":
		logger.Warnf("Using in-memory credential store; accounts are lost on restart")
		return users.NewMemoryUserRepository(), nil
	default:
		if mongoClient == nil {
			return nil, errors.New("MongoDB is not reachable (set MONGODB_URI or STORE_DRIVER=memory)")
		}
		repo := users.NewMongoUserRepository(mongoClient.Database(cfg.MongoDB.Database).Collection("users"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("user indexes: %w", err)
		}
		logger.Infof("Using MongoDB credential store")
		return repo, nil
	}
}
