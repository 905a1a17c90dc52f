// Package main provides the duel server binary: HTTP API, websocket gateway,
// and optional round history in PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/session"
	"github.com/cory-johannsen/duel/internal/gameserver"
	"github.com/cory-johannsen/duel/internal/observability"
	"github.com/cory-johannsen/duel/internal/scripting"
	"github.com/cory-johannsen/duel/internal/server"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

const dbHealthInterval = 30 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	diceRoller := dice.NewLoggedRoller(dice.NewCryptoSource(), observability.Component(logger, "dice"))

	logger.Info("starting duel server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Characters
	charStart := time.Now()
	characters := character.NewBuiltinRegistry()
	if cfg.Content.CharactersDir != "" {
		loaded, err := character.LoadArchetypes(cfg.Content.CharactersDir)
		if err != nil {
			logger.Fatal("loading archetypes", zap.Error(err))
		}
		for _, a := range loaded {
			if err := characters.Register(a); err != nil {
				logger.Fatal("registering archetype", zap.String("id", a.ID), zap.Error(err))
			}
		}
	}
	logger.Info("characters loaded",
		zap.Int("count", len(characters.All())),
		zap.Duration("elapsed", time.Since(charStart)),
	)

	// Abilities, optionally scripted
	scriptMgr := scripting.NewManager(diceRoller, observability.Component(logger, "scripting"), cfg.Duel.ScriptInstructionLimit)
	defer scriptMgr.Close()

	abilityStart := time.Now()
	var defs []ability.Definition
	if cfg.Content.AbilitiesDir != "" {
		defs, err = ability.LoadDefinitions(cfg.Content.AbilitiesDir)
		if err != nil {
			logger.Fatal("loading ability definitions", zap.Error(err))
		}
	}
	abilities, err := ability.BuildCatalog(diceRoller, defs, scriptMgr, cfg.Content.ScriptsDir)
	if err != nil {
		logger.Fatal("building ability catalog", zap.Error(err))
	}
	logger.Info("abilities loaded",
		zap.Int("count", abilities.Len()),
		zap.Int("scripted", len(scriptMgr.Abilities())),
		zap.Duration("elapsed", time.Since(abilityStart)),
	)

	registry := session.NewRegistry(characters, abilities, diceRoller, observability.Component(logger, "session"), session.Options{
		JoinTimeout:       cfg.Duel.JoinTimeout,
		DisconnectTimeout: cfg.Duel.DisconnectTimeout,
	})
	defer registry.Close()

	lifecycle := server.NewLifecycle(logger)

	// Round history
	var recorder gameserver.RoundRecorder = gameserver.NopRecorder{}
	var history gameserver.RoundHistory
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		repo := postgres.NewRoundRepository(pool.DB())
		recorder = repo
		history = repo
		lifecycle.Add("db-health", dbHealthService(pool, observability.Component(logger, "postgres")))
	} else {
		logger.Info("round history disabled")
	}

	gw := gameserver.NewGateway(registry, recorder, observability.Component(logger, "gateway"), gameserver.GatewayOptions{})
	router := gameserver.NewRouter(&gameserver.API{
		Registry:   registry,
		Characters: characters,
		Abilities:  abilities,
		History:    history,
		PublicURL:  cfg.Server.PublicURL,
		Logger:     observability.Component(logger, "api"),
	}, gw)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	httpServer.RegisterOnShutdown(gw.Close)

	lifecycle.Add("http", server.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout, logger))

	logger.Info("duel server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("duel server stopped with error", zap.Error(err))
		return
	}
	logger.Info("duel server stopped")
}

// dbHealthService pings the pool until stopped, logging failures.
func dbHealthService(pool *postgres.Pool, logger *zap.Logger) server.Service {
	done := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(dbHealthInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					if err := pool.Health(context.Background(), 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
						continue
					}
					st := pool.Stats()
					logger.Debug("database healthy",
						zap.Int32("conns", st.Total),
						zap.Int32("idle", st.Idle),
						zap.Int32("acquired", st.Acquired),
					)
				}
			}
		},
		StopFn: func() { close(done) },
	}
}
