package server

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/flightsurety/cli/options"
	"github.com/nspcc-dev/flightsurety/pkg/config"
	"github.com/nspcc-dev/flightsurety/pkg/ledger"
	"github.com/nspcc-dev/flightsurety/pkg/services/api"
	"github.com/nspcc-dev/flightsurety/pkg/services/flights"
	"github.com/nspcc-dev/flightsurety/pkg/services/metrics"
	"github.com/nspcc-dev/flightsurety/pkg/services/oracle"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns 'node' command.
func NewCommands() []cli.Command {
	cfgFlags := []cli.Flag{options.ConfigFile, options.EnvFile, options.Debug}
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "Start FlightSurety oracle service",
			UsageText: "surety node [--config-file file] [--env-file file] [--debug]",
			Action:    startServer,
			Flags:     cfgFlags,
		},
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func startServer(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	debug := ctx.Bool("debug")
	log, logLevel, err := options.HandleLoggingParams(debug, cfg.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	l, err := ledger.New(grace, log, cfg.Ledger, cfg.Oracle.UnlockWallet, cfg.Oracle.OracleCount)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to connect to the ledger: %w", err), 1)
	}
	cache := flights.NewCache()
	orc, err := oracle.New(oracle.Config{
		Log:                    log.With(zap.String("service", "oracle")),
		Ledger:                 l,
		Pool:                   l.Pool(),
		Events:                 l.Events(),
		Flights:                cache,
		Stake:                  big.NewInt(cfg.Oracle.Stake),
		FlightNames:            cfg.Oracle.Flights,
		MaxConcurrentBootstrap: cfg.Oracle.MaxConcurrentBootstrap,
		Rand:                   newRand(cfg.Oracle),
	})
	if err != nil {
		l.Shutdown()
		return cli.NewExitError(fmt.Errorf("can't initialize oracle service: %w", err), 1)
	}

	services := []*metrics.Service{
		api.New(cfg.API, log, l, cache),
		metrics.NewPrometheusService(cfg.Prometheus, log),
		metrics.NewPprofService(cfg.Pprof, log),
	}
	for i, s := range services {
		if err := s.Start(); err != nil {
			for _, started := range services[:i] {
				started.ShutDown()
			}
			l.Shutdown()
			return cli.NewExitError(fmt.Errorf("failed to start %s service: %w", s.Name(), err), 1)
		}
	}

	if operational, err := l.IsOperational(); err != nil {
		log.Warn("can't get contract state", zap.Error(err))
	} else {
		log.Info("contract state", zap.Bool("operational", operational))
	}
	l.Start()
	orc.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

Main:
	for {
		select {
		case <-sigCh:
			if debug {
				log.Info("SIGHUP received, debug mode is on, log level is not changed")
				continue
			}
			newCfg, err := options.GetConfigFromContext(ctx)
			if err != nil {
				log.Warn("can't reread the config file, signal ignored", zap.Error(err))
				continue
			}
			lvl, err := parseLevel(newCfg.Logger)
			if err != nil {
				log.Warn("wrong LogLevel in the new config, signal ignored", zap.Error(err))
				continue
			}
			log.Info("SIGHUP received, changing log level", zap.Stringer("level", lvl))
			logLevel.SetLevel(lvl)
		case <-grace.Done():
			signal.Stop(sigCh)
			break Main
		}
	}

	orc.Shutdown()
	l.Shutdown()
	for i := len(services) - 1; i >= 0; i-- {
		services[i].ShutDown()
	}
	return nil
}

func newRand(cfg config.Oracle) oracle.Rand {
	if cfg.RandomSeed == 0 {
		return nil
	}
	return oracle.NewSeededRand(cfg.RandomSeed)
}

func parseLevel(cfg config.Logger) (zapcore.Level, error) {
	if cfg.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(cfg.LogLevel)
}
