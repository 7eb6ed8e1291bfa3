// Command healthprobe serves host resource and datastore health probes over
// HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/healthprobe/auth"
	"github.com/jonwraymond/healthprobe/config"
	"github.com/jonwraymond/healthprobe/health"
	"github.com/jonwraymond/healthprobe/hostmetrics"
	"github.com/jonwraymond/healthprobe/observe"
	"github.com/jonwraymond/healthprobe/server"
	"github.com/jonwraymond/healthprobe/store/mongostore"
	"github.com/jonwraymond/healthprobe/store/redisstore"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "healthprobe: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(version))
	if err != nil {
		return fmt.Errorf("failed to create observer: %w", err)
	}
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("failed to create probe middleware: %w", err)
	}

	srv, err := server.New(serverConfig(cfg), buildProbes(cfg, logger, mw), logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info(ctx, "received shutdown signal", observe.Field{Key: "signal", Value: sig.String()})
	case runErr = <-errChan:
		logger.Error(ctx, "server error", observe.Field{Key: "error", Value: runErr.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "failed to shutdown HTTP server", observe.Field{Key: "error", Value: err.Error()})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "healthprobe: failed to shutdown observer: %v\n", err)
	}
	return runErr
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Port:                cfg.Server.Port,
		ReadTimeout:         cfg.Server.ReadTimeout,
		WriteTimeout:        cfg.Server.WriteTimeout,
		IdleTimeout:         cfg.Server.IdleTimeout,
		MaxConcurrentProbes: cfg.Server.MaxConcurrentProbes,
		RateLimit:           cfg.Server.RateLimit,
		RateBurst:           cfg.Server.RateBurst,
	}
}

// buildProbes wires the evaluators for every enabled store. MongoDB is the
// primary dependency for readiness when enabled.
func buildProbes(cfg *config.Config, logger observe.Logger, mw *observe.Middleware) server.Probes {
	thresholds := cfg.DefaultThresholds()
	aggCfg := health.AggregatorConfig{Thresholds: &thresholds, Middleware: mw}

	evaluator := health.NewEvaluator(
		hostmetrics.New(hostmetrics.Config{DiskPath: cfg.Sampling.DiskPath}),
		health.EvaluatorConfig{CPUWindow: cfg.Sampling.CPUWindow, Logger: logger},
	)

	probes := server.Probes{}
	if cfg.Auth.Enabled {
		probes.Authenticator = auth.NewJWTAuthenticator(
			auth.JWTConfig{Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience},
			auth.NewStaticKeyProvider([]byte(cfg.Auth.HMACKey)),
		)
		probes.RequiredRole = cfg.Auth.RequiredRole
	}

	var primaryVerifier *health.Verifier
	if cfg.Mongo.Enabled {
		verifier := health.NewVerifier(health.VerifierConfig{
			Service:      "mongodb",
			StageTimeout: cfg.Mongo.StageTimeout,
			Logger:       logger,
		})
		factory := mongostore.Factory(cfg.MongoStore())
		primaryVerifier = verifier
		probes.Primary = factory
		probes.Dependencies = append(probes.Dependencies, server.Dependency{
			Name:       "mongo",
			Aggregator: health.NewAggregator(nil, verifier, aggCfg),
			Factory:    factory,
		})
	}
	if cfg.Redis.Enabled {
		verifier := health.NewVerifier(health.VerifierConfig{
			Service:      "redis",
			StageTimeout: cfg.Redis.StageTimeout,
			Logger:       logger,
		})
		probes.Dependencies = append(probes.Dependencies, server.Dependency{
			Name:       "redis",
			Aggregator: health.NewAggregator(nil, verifier, aggCfg),
			Factory:    redisstore.Factory(cfg.RedisStore()),
		})
	}

	probes.Aggregator = health.NewAggregator(evaluator, primaryVerifier, aggCfg)
	return probes
}
