package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/writebehind"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - Write-behind caching for slow, fallible stores",
	Long: `Burrow is an in-memory write-behind cache that absorbs frequent
reads and many small updates per key, writes accumulated updates out to a
backing store asynchronously, and resyncs in the background to reconcile
with concurrent external writers.`,
	Version: Version,
}

var (
	demoDataDir    string
	demoConfigPath string
	demoListenAddr string
	demoKeys       int
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	demoCmd.Flags().StringVar(&demoDataDir, "data-dir", "./burrow-data", "Directory for the BoltDB store")
	demoCmd.Flags().StringVar(&demoConfigPath, "config", "", "Optional flat YAML cache configuration")
	demoCmd.Flags().StringVar(&demoListenAddr, "listen", ":9090", "Metrics/health listen address")
	demoCmd.Flags().IntVar(&demoKeys, "keys", 10, "Number of demo keys to churn")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a demo cache over a local BoltDB store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := log.Init(log.Config{Level: "info", Console: true}); err != nil {
			return err
		}
		logger := log.WithComponent("demo")

		opts := writebehind.DefaultOptions("demo")
		opts.MainQueueCacheTime = 2 * time.Second
		opts.MainQueueCacheTimeMin = 500 * time.Millisecond
		opts.ReturnQueueCacheTimeMin = time.Second
		opts.UntouchedItemCacheExpirationDelay = 10 * time.Second
		if demoConfigPath != "" {
			cfg, err := config.LoadFile(demoConfigPath)
			if err != nil {
				return err
			}
			if !cfg.Has("cacheName") {
				cfg.Set("cacheName", "demo")
			}
			opts, err = writebehind.ParseOptions(cfg)
			if err != nil {
				return err
			}
		}

		if err := os.MkdirAll(demoDataDir, 0700); err != nil {
			return err
		}
		store, err := storage.NewBoltStore(demoDataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		cache, err := writebehind.NewStringCache(opts, store)
		if err != nil {
			return err
		}
		if err := cache.Start(); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", cache.Liveness().Handler())
		server := &http.Server{Addr: demoListenAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("addr", demoListenAddr).Msg("Serving /metrics and /healthz")

		stopCh := make(chan os.Signal, 1)
		signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-ticker.C:
				key := fmt.Sprintf("demo-key-%d", rand.Intn(demoKeys))
				if _, _, err := cache.ReadFor(key, time.Second); err != nil {
					logger.Warn().Err(err).Str("key", key).Msg("Read failed")
					continue
				}
				update := byte('a' + rand.Intn(26))
				if _, err := cache.WriteIfCached(key, update); err != nil {
					logger.Warn().Err(err).Str("key", key).Msg("Write failed")
				}
			case <-stopCh:
				break loop
			}
		}

		logger.Info().Msg("Shutting down")
		_ = server.Close()
		drained, err := cache.ShutdownFor(5 * time.Second)
		if err != nil {
			return err
		}
		if !drained {
			logger.Warn().Msg("Shutdown deadline hit before the cache drained")
		}
		status := cache.Status(0)
		logger.Info().
			Int64("writes", status.Counters.StorageWriteSuccesses).
			Int64("expired", status.Counters.ReturnQueueExpiredFromCacheCount).
			Msg("Done")
		return nil
	},
}
