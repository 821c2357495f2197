package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/bayz-go"
)

var (
	renderFile    string
	renderOut     string
	renderSeconds float64
)

func init() {
	addClientFlags(renderCmd.Flags())
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "snapshot JSON (default: fetch from the server)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "bayz.wav", "output WAV path")
	renderCmd.Flags().Float64Var(&renderSeconds, "seconds", 8, "length to render")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a composition to a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSnapshot(cmd.Context(), renderFile, cfg.ServerURL)
		if err != nil {
			return err
		}
		samples, err := bayz.RenderSnapshot(s, cfg.SampleRate, renderSeconds,
			bayz.WithTickPeriod(cfg.TickPeriod()),
			bayz.WithVoiceParams(cfg.VoiceParams()),
			bayz.WithMasterGain(cfg.MasterGain),
			bayz.WithLogger(slog.Default()),
		)
		if err != nil {
			return err
		}
		if err := os.WriteFile(renderOut, bayz.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2), 0644); err != nil {
			return err
		}
		slog.Info("rendered", "out", renderOut, "seconds", renderSeconds, "lines", len(s.Sound))
		return nil
	},
}
