package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cbegin/bayz-go/internal/midiexport"
)

var (
	exportFile   string
	exportOut    string
	exportCycles int
)

func init() {
	exportCmd.Flags().String(flagServer, "", "compose server URL (default from config)")
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "snapshot JSON (default: fetch from the server)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "bayz.mid", "output MIDI path")
	exportCmd.Flags().IntVar(&exportCycles, "cycles", 4, "number of cycles to write")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a composition as a Standard MIDI File",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSnapshot(cmd.Context(), exportFile, cfg.ServerURL)
		if err != nil {
			return err
		}
		if err := midiexport.WriteFile(exportOut, s, exportCycles); err != nil {
			return err
		}
		slog.Info("exported", "out", exportOut, "cycles", exportCycles, "lines", len(s.Sound))
		return nil
	},
}
