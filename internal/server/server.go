package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/safar-labs/safar/config"
	"github.com/safar-labs/safar/internal/agent"
	agenttele "github.com/safar-labs/safar/internal/agent/telemetry"
	"github.com/safar-labs/safar/internal/market"
	"github.com/safar-labs/safar/internal/store"
	"github.com/safar-labs/safar/provider"
)

// Run wires the full platform and serves HTTP until the process exits.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx := context.Background()
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Databases.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Databases.Redis.Addr(),
			Password: cfg.Databases.Redis.Password,
			DB:       cfg.Databases.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
		}
	}

	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	var tele *agenttele.Telemetry
	if cfg.Telemetry.Enabled {
		tele = agenttele.New(prometheus.DefaultRegisterer)
	}
	research := agent.NewResearch(st, market.New(cfg.Providers.SerpAPI), rdb, cfg.Agent.ResearchCacheTTL, cfg.Agent.MaxHotelCandidates)
	planner := agent.NewPlanner(llm, agent.RetryPolicy{MaxAttempts: cfg.Agent.MaxPlannerAttempts})
	pricer := agent.NewPricer(cfg.Agent.MarginPercent, cfg.Agent.FallbackNightlyRate)
	orch := agent.NewOrchestrator(st, agent.NewSupervisor(), research, planner, pricer, agent.NewQuality(), agent.NewQuoteMapper(), tele, "openai", llm.Model())

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	reqs := &RequirementsHandler{Store: st}
	reqs.RegisterPublic(api.Group("/requirements"))
	reqs.Register(api.Group("/requirements"), auth.Secret)

	runs := &RunsHandler{Runs: orch}
	runs.Register(api, auth.Secret)

	quotes := &QuotesHandler{Store: st}
	quotes.Register(api, auth.Secret)

	partners := &PartnersHandler{Store: st}
	partners.Register(api.Group("/partners"), auth.Secret)

	sweeper := &Sweeper{Store: st, Rdb: rdb, TTL: cfg.Agent.StuckRunTTL, Cron: cfg.Agent.SweepCron, Stop: make(chan struct{})}
	sweeper.Start()

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10020"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
