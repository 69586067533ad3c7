// Package main provides the entry point for the daybreak CLI.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daybreakapp/daybreak/internal/config"
	"github.com/daybreakapp/daybreak/internal/daily"
	"github.com/daybreakapp/daybreak/internal/generate"
	"github.com/daybreakapp/daybreak/internal/journal"
	"github.com/daybreakapp/daybreak/internal/resource"
	"github.com/daybreakapp/daybreak/internal/store"
	"github.com/daybreakapp/daybreak/internal/version"
)

var (
	configFile string
	debug      bool

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:          "daybreak",
		Short:        "A daily reflection, cached offline and read aloud on request",
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			var err error
			cfg, err = config.Load(configFile)
			return err
		},
	}
)

// app holds the wired collaborators shared by the commands.
type app struct {
	kv        store.Store
	generator *generate.Client
	daily     *daily.Cache
	journal   *journal.Journal
}

// newApp builds the store, generator client, daily cache, and journal from
// the loaded configuration.
func newApp() (*app, error) {
	kv, err := store.NewFileStore(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	generator := generate.NewClient(generate.ClientConfig{
		BaseURL:    cfg.GeneratorURL,
		Timeout:    cfg.GeneratorTimeout,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})

	return &app{
		kv:        kv,
		generator: generator,
		daily: daily.NewCache(kv, generator, daily.CacheConfig{
			Timeout: cfg.GeneratorTimeout,
		}),
		journal: journal.New(kv),
	}, nil
}

// newResourceTransport builds the offline asset transport from the loaded
// configuration.
func newResourceTransport(onEvent func(strategy, event string)) (*resource.Transport, *resource.DiskStore, error) {
	diskStore, err := resource.NewDiskStore(cfg.ResourceCachePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open resource cache: %w", err)
	}

	transport := resource.NewTransport(diskStore, resource.TransportConfig{
		Generation: cfg.CacheVersion,
		AllowHosts: cfg.AllowHosts,
		Manifest:   cfg.Manifest,
		OnEvent:    onEvent,
	})
	return transport, diskStore, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: platform config dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, todayCmd, playCmd, cacheCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
