package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the offline resource cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored generations and their sizes",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		transport, diskStore, err := newResourceTransport(nil)
		if err != nil {
			return err
		}

		stats, err := diskStore.Stats()
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GENERATION\tENTRIES\tSIZE")
		for _, s := range stats {
			name := s.Name
			if name == transport.Generation() {
				name += " (current)"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", name, s.Entries, humanize.Bytes(uint64(s.Bytes)))
		}
		return w.Flush()
	},
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Prefetch the essential-asset manifest into the current generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if len(cfg.Manifest) == 0 {
			return fmt.Errorf("no manifest configured")
		}

		transport, _, err := newResourceTransport(nil)
		if err != nil {
			return err
		}
		if err := transport.Install(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Installed %d resources into generation %q.\n", len(cfg.Manifest), transport.Generation())
		return nil
	},
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete every generation except the current one",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		transport, _, err := newResourceTransport(nil)
		if err != nil {
			return err
		}
		if err := transport.Activate(); err != nil {
			return err
		}
		fmt.Printf("Kept generation %q, removed the rest.\n", transport.Generation())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheInstallCmd, cacheGCCmd)
}
