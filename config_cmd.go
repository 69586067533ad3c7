package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
)

const defaultConfig = `# Generator service the reflections and speech come from.
generator_url: "http://localhost:8480"
generator_timeout: "30s"

# PCM format requested from the generator and used for playback.
sample_rate: 24000
channels: 1

# Resource cache. The version names the active generation; changing it
# invalidates all previously stored assets on the next activation.
# cache_version: "assets-v1"
allow_hosts:
  - "fonts.googleapis.com"
  - "fonts.gstatic.com"
  - "cdn.tailwindcss.com"
# manifest:
#   - "http://localhost:8390/assets/index.html"

# HTTP API bind address.
bind_addr: ":8390"

# Upstream origin the /assets passthrough proxies. Empty disables it.
# asset_origin: "http://localhost:5173"

# Storage locations. Empty means the platform defaults.
# data_dir: ""
# cache_dir: ""

debug: false
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the daybreak config file",
	Example: "daybreak config\ndaybreak config --config path/to/config.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Daybreak", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		scope := gap.NewScope(gap.User, "daybreak")
		p, err := scope.ConfigPath("daybreak.yml")
		if err != nil {
			return fmt.Errorf("could not resolve config path: %w", err)
		}
		configFile = p
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
