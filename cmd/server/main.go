package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/api"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/cache"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/forecast"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geocode"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/overpass"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/storage"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	databaseURL := mustEnv("DATABASE_URL")
	redisURL := mustEnv("REDIS_URL")
	port := getEnv("PORT", "8080")

	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := storage.RunMigrations(ctx, pool, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	// Connect to Redis.
	redisClient, err := cache.Connect(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	suggestionCache := cache.NewCache(redisClient)

	overpassClient := overpass.NewClient(overpass.Config{
		Mirrors:    getEnvList("OVERPASS_MIRRORS"),
		UserAgent:  getEnv("OVERPASS_USER_AGENT", "trip-planner/1.0"),
		Timeout:    getEnvMillis("OVERPASS_TIMEOUT_MS", 25000),
		MaxRadiusM: getEnvFloat("OVERPASS_MAX_RADIUS_M", 50000),
	}, log)

	forecastClient := forecast.NewClient(forecast.Config{
		BaseURL: getEnv("FORECAST_BASE", "http://127.0.0.1:8000"),
		Timeout: getEnvMillis("FORECAST_TIMEOUT_MS", 45000),
		Retries: getEnvInt("FORECAST_RETRIES", 2),
		Backoff: getEnvMillis("FORECAST_RETRY_BACKOFF_MS", 800),
	})

	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:      getEnv("NOMINATIM_BASE", "https://nominatim.openstreetmap.org"),
		UserAgent:    getEnv("OVERPASS_USER_AGENT", "trip-planner/1.0"),
		CountryCodes: getEnv("GEOCODE_COUNTRY_CODES", "lk"),
	})

	engine := suggest.NewEngine(overpassClient, forecastClient, suggest.Config{
		BeachMaxRainHi: getEnvFloat("SUGGEST_BEACH_MAX_RAIN_HI", 25),
		HikeMaxRainHi:  getEnvFloat("SUGGEST_HIKE_MAX_RAIN_HI", 30),
		MaxTempHi:      getEnvFloat("SUGGEST_MAX_T_HI", 38),
		MinGoodDays:    getEnvInt("SUGGEST_MIN_GOOD_DAYS", 1),
		Concurrency:    getEnvInt("SUGGEST_CONCURRENCY", 6),
	}, log)

	handlers := api.NewHandlers(overpassClient, engine, geocoder, suggestionCache, repo, log)

	dbPinger := &pgxPoolPinger{pool: pool}
	redisPinger := &redisPingerAdapter{client: redisClient}
	router := api.NewRouter(handlers, dbPinger, redisPinger, log)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // suggest fans out to slow upstreams
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable not set", "key", key)
		os.Exit(1)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

// getEnvList splits a comma-separated env value; unset yields nil so the
// client's own defaults apply.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pgxPoolPinger adapts pgxpool.Pool to the api health-check interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api health-check interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
