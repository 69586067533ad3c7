package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daybreakapp/daybreak/internal/audio"
	"github.com/daybreakapp/daybreak/internal/daily"
)

var playCmd = &cobra.Command{
	Use:   "play [TEXT]",
	Short: "Read text aloud through the speakers",
	Long: "Synthesize speech for TEXT and play it. With no argument, today's\n" +
		"reflection is read aloud.",
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd.Context(), strings.Join(args, " "))
	},
}

func play(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}

	if text == "" {
		reflection := a.daily.GetOrGenerate(ctx, daily.KeyDaily)
		text = spokenText(reflection)
	}

	done := make(chan struct{}, 1)
	pipeline := audio.NewPipeline(a.generator.GenerateSpeech, audio.NewDeviceContext, audio.PipelineConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		OnState: func(s audio.State) {
			log.Debug("playback state", "state", s)
			if s == audio.StateIdle {
				done <- struct{}{}
			}
		},
	})

	if err := pipeline.RequestPlayback(ctx, text); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		pipeline.Stop()
	}
	return nil
}

// spokenText flattens a reflection into the text read aloud, matching the
// order it is displayed.
func spokenText(r *daily.Reflection) string {
	parts := make([]string, 0, 5)
	for _, part := range []string{r.Title, r.Reference, r.Body, r.ActionItem, r.Closing} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ". ")
}
