package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbegin/bayz-go"
	"github.com/cbegin/bayz-go/internal/voice"
)

var playFile string

func init() {
	addClientFlags(playCmd.Flags())
	playCmd.Flags().StringVarP(&playFile, "file", "f", "", "play this snapshot JSON before the server publishes one")
	playCmd.Long += "\n\nInstruments: " + strings.Join(voice.NewRegistry().Names(), ", ") +
		"\nAny other instrument name plays as the fallback."
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Poll the compose server and play its compositions",
	Long: `Poll the compose server and play whatever it publishes. New compositions
take over at the next cycle boundary. Press Enter to stop or restart playback;
Ctrl-C quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return play(ctx)
	},
}

func play(ctx context.Context) error {
	client, err := bayz.NewClient(
		bayz.WithSampleRate(cfg.SampleRate),
		bayz.WithServerURL(cfg.ServerURL),
		bayz.WithPollInterval(cfg.PollInterval()),
		bayz.WithTickPeriod(cfg.TickPeriod()),
		bayz.WithVoiceParams(cfg.VoiceParams()),
		bayz.WithMasterGain(cfg.MasterGain),
		bayz.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if playFile != "" {
		s, err := loadSnapshot(ctx, playFile, "")
		if err != nil {
			return err
		}
		if err := client.OnCompositionReceived(s); err != nil {
			return err
		}
	}
	if err := client.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "playing; Enter toggles playback, Ctrl-C quits")

	toggles := make(chan struct{})
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case toggles <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-toggles:
			running, err := client.Toggle(ctx)
			if err != nil {
				return err
			}
			if running {
				fmt.Fprintln(os.Stderr, "playing")
			} else {
				fmt.Fprintln(os.Stderr, "stopped")
			}
		}
	}
}
