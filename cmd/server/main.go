package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"tour-optimization-service/internal/adapters/cache"
	"tour-optimization-service/internal/adapters/events"
	"tour-optimization-service/internal/adapters/geocode"
	"tour-optimization-service/internal/adapters/here"
	"tour-optimization-service/internal/adapters/repositories"
	"tour-optimization-service/internal/api"
	"tour-optimization-service/internal/config"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/metrics"
	"tour-optimization-service/internal/platform/db"
	"tour-optimization-service/internal/ports"
	"tour-optimization-service/internal/services"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, HERE, Google, Redis) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DB.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if config.Get("INIT_SCHEMA", "") == "true" {
		if err := repositories.InitSchema(conn); err != nil {
			log.Fatal(err)
		}
	}

	hereClient, err := here.NewClient(tokenSource(ctx, cfg.HERE), here.Options{
		TourPlanningURL:   cfg.HERE.TourPlanningURL,
		RoutingURL:        cfg.HERE.RoutingURL,
		RequestsPerSecond: cfg.HERE.RequestsPerSecond,
		Burst:             cfg.HERE.Burst,
		MetricsCache:      cache.NewSQLRouteMetricsCache(conn),
	})
	if err != nil {
		log.Fatal(err)
	}

	publisher, closePublisher, err := newPublisher(cfg.Redis.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer closePublisher()

	driverRepo := repositories.NewPostgresDriverRepository(conn)
	optimizer := &services.Optimizer{
		Waypoints: repositories.NewPostgresWaypointRepository(conn),
		Drivers:   driverRepo,
		Routes:    repositories.NewPostgresRouteRepository(conn),
		Resolver: &services.Resolver{
			Client:       hereClient,
			Events:       publisher,
			PollInterval: cfg.Optimization.PollInterval,
			PollTimeout:  cfg.Optimization.PollTimeout,
		},
		NewBuilder: func() ports.ProblemBuilder {
			profile := domain.Profile{
				Name:          cfg.Optimization.Profile,
				Type:          cfg.Optimization.Profile,
				AvoidFeatures: cfg.Optimization.AvoidFeatures,
			}
			return services.NewTourProblemBuilder(profile, cfg.Optimization.DefaultCapacity)
		},
	}

	// Without a key, CUSTOM locations must carry coordinates.
	if key := strings.TrimSpace(cfg.Google.MapsAPIKey); key != "" {
		geocoder, err := geocode.NewGoogleGeocoder(key, cache.NewSQLGeocodeCache(conn))
		if err != nil {
			log.Fatal(err)
		}
		optimizer.Geocoder = geocoder
	}

	router := api.NewRouter(api.Deps{
		Optimizer:       optimizer,
		Managers:        driverRepo,
		RouteMetrics:    hereClient,
		OptimizeTimeout: cfg.Optimization.RequestTimeout,
		DB:              conn,
	})

	// WriteTimeout only limits writing the response; OptimizeTimeout cancels
	// the optimization itself, ahead of it.
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening addr=%s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error err=%v", err)
	}
}

func tokenSource(ctx context.Context, c config.HEREConfig) oauth2.TokenSource {
	if strings.TrimSpace(c.AccessToken) != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"})
	}
	cc := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// The token source outlives the signal context so in-flight requests can drain.
	return cc.TokenSource(context.WithoutCancel(ctx))
}

func newPublisher(redisURL string) (ports.JobEventPublisher, func(), error) {
	if strings.TrimSpace(redisURL) == "" {
		return events.LogPublisher{}, func() {}, nil
	}
	p, err := events.NewRedisPublisher(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("events: %w", err)
	}
	return p, func() {
		if err := p.Close(); err != nil {
			log.Printf("redis close error err=%v", err)
		}
	}, nil
}
