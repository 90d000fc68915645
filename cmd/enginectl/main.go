package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/shardbridge/pkg/backend/memadapter"
	"github.com/cuemby/shardbridge/pkg/config"
	"github.com/cuemby/shardbridge/pkg/engine"
	"github.com/cuemby/shardbridge/pkg/errqueue"
	"github.com/cuemby/shardbridge/pkg/log"
	"github.com/cuemby/shardbridge/pkg/metrics"
	"github.com/spf13/cobra"
)

// Exit codes (spec §6): 0 success, 1 startup failure, 2 uncaught Error2+,
// 3 configuration error.
const (
	exitSuccess        = 0
	exitStartupFailure = 1
	exitUncaughtError2 = 2
	exitConfigError    = 3
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	code := exitSuccess
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = exitStartupFailure
	}
	return code
}

var rootCmd = &cobra.Command{
	Use:     "enginectl",
	Short:   "Control process for the sharded relational data access engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("enginectl version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the config file's log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path == "" {
		cfg = config.Defaults()
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if json, _ := cmd.Flags().GetBool("log-json"); json {
		cfg.LogJSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine and serve its metrics endpoint until signaled",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		os.Exit(exitConfigError)
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	e, err := engine.Start(cfg)
	if err != nil {
		log.Logger.Error().Err(err).Msg("engine failed to start")
		os.Exit(exitStartupFailure)
	}
	defer func() { _ = e.Shutdown() }()

	// The reference in-process backend is always available so enginectl
	// can be exercised without a live database; real deployments register
	// additional drivers the same way before RegisterShard.
	e.RegisterBackend(memadapter.NewDriver())

	statsFn := func() map[string]metrics.PoolStats {
		out := make(map[string]metrics.PoolStats)
		for id, s := range e.Conns.Stats() {
			out[string(id)] = metrics.PoolStats{Slots: s.Slots, InUse: s.InUse}
		}
		return out
	}
	collector := metrics.NewCollector(statsFn)
	collector.Start()
	defer collector.Stop()

	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caughtErr := e.Errors().Catch(nil, func() {
		<-ctx.Done()
	})
	if caughtErr != nil && caughtErr.Level >= errqueue.Error2 {
		os.Exit(exitUncaughtError2)
	}

	log.Logger.Info().Msg("shutting down")
	if server != nil {
		_ = server.Close()
	}
	return nil
}
