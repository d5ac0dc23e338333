package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	httpfrontend "github.com/peerdex/peerdex/frontend/http"
	"github.com/peerdex/peerdex/pkg/log"
	"github.com/peerdex/peerdex/pkg/stop"
	"github.com/peerdex/peerdex/storage"
	"github.com/peerdex/peerdex/storage/memory"
	"github.com/peerdex/peerdex/storage/persistence"
)

// ConfigFile represents the YAML configuration file.
type ConfigFile struct {
	MainConfigBlock struct {
		HTTPConfig       httpfrontend.Config `yaml:"http"`
		Storage          memory.Config       `yaml:"storage"`
		SnapshotPath     string              `yaml:"snapshot_path"`
		SnapshotInterval time.Duration       `yaml:"snapshot_interval"`
		PrometheusAddr   string              `yaml:"prometheus_addr"`
	} `yaml:"peerdex"`
}

// ParseConfigFile returns a new ConfigFile given the path to a YAML
// configuration file. It supports relative and absolute paths and
// environment variables. An empty path yields the defaults.
func ParseConfigFile(path string) (*ConfigFile, error) {
	var cfgFile ConfigFile
	cfgFile.MainConfigBlock.HTTPConfig.Addr = "0.0.0.0:6969"
	cfgFile.MainConfigBlock.SnapshotPath = "peerdex-state.json"

	if path == "" {
		return &cfgFile, nil
	}

	contents, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := yaml.Unmarshal(contents, &cfgFile); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	return &cfgFile, nil
}

func rootRun(configFilePath string, debug bool) error {
	if debug {
		log.SetDebug(true)
		log.Debug("debug logging enabled")
	}

	configFile, err := ParseConfigFile(configFilePath)
	if err != nil {
		return err
	}
	cfg := configFile.MainConfigBlock

	peerStore := memory.New(cfg.Storage)
	saver := persistence.New(cfg.SnapshotPath, cfg.Storage.PeerLifetime)

	// A snapshot that fails to load is not fatal; the tracker starts
	// from scratch.
	dump, err := saver.Load()
	if err != nil {
		log.Error("failed to restore state, starting empty", log.Err(err))
	}
	peerStore.Load(dump)

	ctx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	frontend := httpfrontend.NewFrontend(peerStore, storage.NewPartialMatcher(0.8), saver, shutdown, cfg.HTTPConfig)

	errChan := make(chan error, 1)
	go func() {
		log.Info("started serving HTTP", log.Fields{"addr": cfg.HTTPConfig.Addr})
		if err := frontend.ListenAndServe(); err != nil {
			errChan <- errors.Wrap(err, "failed to cleanly shutdown HTTP frontend")
			shutdown()
		}
	}()

	if cfg.PrometheusAddr != "" {
		go func() {
			log.Info("started serving prometheus stats", log.Fields{"addr": cfg.PrometheusAddr})
			promServer := http.Server{
				Addr:    cfg.PrometheusAddr,
				Handler: promhttp.Handler(),
			}
			if err := promServer.ListenAndServe(); err != nil {
				log.Error("prometheus server failed", log.Err(err))
			}
		}()
	}

	if cfg.SnapshotInterval > 0 {
		go func() {
			t := time.NewTicker(cfg.SnapshotInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := saver.Save(peerStore.Dump()); err != nil {
						log.Error("periodic snapshot failed", log.Err(err))
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", log.Fields{"signal": sig.String()})
		shutdown()
	case <-ctx.Done():
	}

	// Drain in-flight requests, then write the final snapshot from a
	// quiesced store.
	group := stop.NewGroup()
	group.Add(frontend)
	for _, err := range group.Stop().Wait() {
		log.Error("error shutting down frontend", log.Err(err))
	}

	if err := saver.Save(peerStore.Dump()); err != nil {
		log.Error("final snapshot failed", log.Err(err))
	}
	peerStore.Stop().Wait()

	select {
	case err := <-errChan:
		return err
	default:
	}
	return nil
}

func main() {
	var configFilePath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "peerdex",
		Short: "BitTorrent tracker",
		Long:  "A BitTorrent tracker that keeps swarm state in memory and snapshots it to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootRun(configFilePath, debug)
		},
	}

	rootCmd.Flags().StringVar(&configFilePath, "config", "", "location of configuration file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal("failed to run", log.Err(err))
	}
}
