package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal_valuation/pkg/api/config"
	"deal_valuation/pkg/api/offer"
	"deal_valuation/pkg/api/report"
	"deal_valuation/pkg/api/respond"
	"deal_valuation/pkg/api/termsheet"
	"deal_valuation/pkg/api/valuation"
	"deal_valuation/pkg/app"
	coreConfig "deal_valuation/pkg/core/config"
	"deal_valuation/pkg/core/logging"
)

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the application config")
	companiesDir := flag.String("companies", "data/companies", "directory of company snapshot files")
	flag.Parse()

	cfg, err := coreConfig.Load(*configPath)
	logger := logging.New(cfg.Logging)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{CompaniesDir: *companiesDir, Background: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	api := http.NewServeMux()
	valuation.NewHandler(a.Engine, a.Valuations, logger).Register(api)
	offerHandler := offer.NewHandler(a.Generator, a.Offers, a.Valuations, logger)
	offerHandler.IncludeOptional = cfg.Offers.IncludeOptional
	offerHandler.Register(api)
	termsheet.NewHandler(a.TermSheets, a.Offers, logger).Register(api)
	config.NewHandler(a.Agents, logger).Register(api)
	report.NewHandler(a.Valuations, a.Offers, logger).Register(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", a.Metrics.Instrument("api",
		http.TimeoutHandler(api, cfg.Server.RequestTimeout, `{"error":"request timed out","code":"timeout"}`)))
	mux.Handle("GET /metrics", a.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.Pool != nil {
			if err := a.Pool.Ping(r.Context()); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"peers_loaded_at": a.Peers.LoadedAt(),
			"llm_provider":    a.Agents.GetActiveProvider(),
		})
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           respond.CORS(cfg.Server.AllowOrigin, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
