// Package app wires configuration into the services shared by the API server
// and the command line tool.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"deal_valuation/pkg/core/agent"
	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/config"
	"deal_valuation/pkg/core/financials"
	"deal_valuation/pkg/core/llm"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/metrics"
	"deal_valuation/pkg/core/narrative"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/peers"
	"deal_valuation/pkg/core/prompt"
	"deal_valuation/pkg/core/store"
	"deal_valuation/pkg/core/termsheet"
	"deal_valuation/pkg/core/valuation"
)

// App holds the long-lived services.
type App struct {
	Config  config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Pool    *pgxpool.Pool

	Agents    *agent.Manager
	Narrator  *narrative.Narrator
	Peers     *peers.Catalog
	Companies *financials.MemorySource

	Engine     *valuation.Engine
	Generator  *offer.Generator
	TermSheets *termsheet.Service

	Valuations *store.ValuationRepo
	Offers     *store.OfferRepo
	Sheets     *store.TermSheetRepo

	jobs *cron.Cron
}

// Options tune what Build starts.
type Options struct {
	CompaniesDir string
	// Background starts the peer refresh and term sheet expiry schedules.
	Background bool
}

// Build connects storage, loads reference data and constructs the services.
// Callers must Close the result.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	l := logging.Component(logger, "app")

	if cfg.Database.URL != "" {
		pool, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.Pool = pool
		l.Info().Msg("using postgres storage")
	} else {
		l.Info().Str("dir", cfg.Database.FallbackDir).Msg("no database configured, using file storage")
	}

	var err error
	if a.Valuations, err = store.NewValuationRepo(a.Pool, cfg.Database.FallbackDir); err != nil {
		a.Close()
		return nil, err
	}
	if a.Offers, err = store.NewOfferRepo(a.Pool, cfg.Database.FallbackDir); err != nil {
		a.Close()
		return nil, err
	}
	if a.Sheets, err = store.NewTermSheetRepo(a.Pool, cfg.Database.FallbackDir); err != nil {
		a.Close()
		return nil, err
	}

	if a.Companies, err = financials.LoadDir(opts.CompaniesDir); err != nil {
		a.Close()
		return nil, fmt.Errorf("load companies: %w", err)
	}
	source := financials.Chain{a.Companies}
	if a.Pool != nil {
		source = financials.Chain{financials.NewPGSource(a.Pool), a.Companies}
	}

	a.Peers = peers.NewCatalog(cfg.Peers.Files, logger)
	if err := a.Peers.Reload(); err != nil {
		l.Warn().Err(err).Msg("peer catalog unavailable, relative methods will be skipped")
	}

	prompts, err := prompt.Default()
	if err != nil {
		a.Close()
		return nil, err
	}
	if dir := cfg.LLM.PromptsDir; dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := prompts.LoadDirectory(dir); err != nil {
				l.Warn().Err(err).Str("dir", dir).Msg("prompt overrides not loaded")
			}
		}
	}

	a.Agents = newAgentManager(cfg.LLM, logger)
	mgr := a.Agents
	if cfg.LLM.Disabled {
		mgr = nil
	}
	a.Narrator = narrative.New(mgr, prompts, logger, a.Metrics)

	builder := assumption.NewBuilder(cfg.Valuation.Industries).
		WithMarketRates(cfg.Valuation.RiskFreeRate, cfg.Valuation.MarketRiskPremium)
	a.Engine = valuation.NewEngine(builder,
		valuation.WithSnapshotSource(source),
		valuation.WithPeerProvider(a.Peers),
		valuation.WithNarrator(a.Narrator),
		valuation.WithWeights(cfg.Valuation.Weights),
		valuation.WithMonteCarloDefaults(cfg.Valuation.MonteCarloIterations, cfg.Valuation.MonteCarloWorkers),
		valuation.WithMetrics(a.Metrics),
		valuation.WithLogger(logger),
	)

	if a.Generator, err = offer.NewGenerator(cfg.OfferTemplates(),
		offer.WithInsights(a.Narrator),
		offer.WithGeneratorMetrics(a.Metrics),
		offer.WithGeneratorLogger(logger),
	); err != nil {
		a.Close()
		return nil, err
	}
	a.TermSheets = termsheet.NewService(a.Sheets, logger, a.Metrics)

	if opts.Background {
		if err := a.startJobs(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func newAgentManager(cfg config.LLMConfig, logger *log.Logger) *agent.Manager {
	l := logging.Component(logger, "app")
	agentCfg, err := agent.LoadConfig(cfg.ModelsFile)
	if err != nil {
		l.Warn().Err(err).Msg("agent routing not loaded, using active provider only")
	}

	providers := map[string]llm.Provider{}
	if cfg.GeminiAPIKey != "" {
		providers["gemini"] = &llm.GeminiProvider{APIKey: cfg.GeminiAPIKey}
		providers["gemini_agent"] = &llm.GeminiAgentProvider{APIKey: cfg.GeminiAPIKey}
	}
	if cfg.DeepSeekAPIKey != "" {
		providers["deepseek"] = &llm.DeepSeekProvider{APIKey: cfg.DeepSeekAPIKey}
	}
	if _, ok := providers[agentCfg.ActiveProvider]; !ok {
		for _, name := range []string{"gemini", "deepseek"} {
			if _, ok := providers[name]; ok {
				agentCfg.ActiveProvider = name
				break
			}
		}
	}
	l.Info().Int("providers", len(providers)).Str("active", agentCfg.ActiveProvider).Msg("llm providers registered")
	return agent.NewManager(agentCfg, providers, logger)
}

func (a *App) startJobs() error {
	l := logging.Component(a.Logger, "jobs")
	if s := a.Config.Peers.RefreshSchedule; s != "" {
		if err := a.Peers.StartRefresh(s); err != nil {
			return err
		}
	}
	if s := a.Config.TermSheets.ExpirySchedule; s != "" {
		a.jobs = cron.New()
		if _, err := a.jobs.AddFunc(s, func() {
			n, err := a.TermSheets.ExpireStale(context.Background())
			if err != nil {
				l.Error().Err(err).Msg("term sheet expiry failed")
				return
			}
			if n > 0 {
				l.Info().Int("expired", n).Msg("term sheets expired")
			}
		}); err != nil {
			return fmt.Errorf("term sheet expiry schedule %q: %w", s, err)
		}
		a.jobs.Start()
	}
	return nil
}

// Close stops background jobs and releases the database pool.
func (a *App) Close() {
	if a.Peers != nil {
		a.Peers.Stop()
	}
	if a.jobs != nil {
		<-a.jobs.Stop().Done()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
