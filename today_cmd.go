package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daybreakapp/daybreak/internal/daily"
)

var todayAsJSON bool

var todayCmd = &cobra.Command{
	Use:   "today [TOPIC]",
	Short: "Print today's reflection",
	Long: "Print today's reflection. The first call each day asks the generator\n" +
		"and caches the result; later calls are served locally. Passing a topic\n" +
		"generates a fresh reflection on it without touching the daily cache.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		key := daily.KeyDaily
		if len(args) > 0 {
			key = args[0]
		}
		reflection := a.daily.GetOrGenerate(cmd.Context(), key)

		if todayAsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reflection)
		}

		printReflection(reflection)
		return nil
	},
}

func init() {
	todayCmd.Flags().BoolVar(&todayAsJSON, "json", false, "print as JSON")
}

func printReflection(r *daily.Reflection) {
	fmt.Println(r.Title)
	fmt.Println(strings.Repeat("=", len(r.Title)))
	if r.Reference != "" {
		fmt.Println(r.Reference)
	}
	fmt.Println()
	fmt.Println(r.Body)
	if r.ActionItem != "" {
		fmt.Println()
		fmt.Println("Today:", r.ActionItem)
	}
	if r.Closing != "" {
		fmt.Println()
		fmt.Println(r.Closing)
	}
}
