package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cbegin/bayz-go/internal/config"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bayz",
	Short: "Live-coded music: compose server and tick-synchronized player",
	Long: `bayz plays compositions published by a compose server. Lines are
staged on the server, committed as a snapshot, and every player switches to
the new snapshot at its next cycle boundary.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if err := overrideConfig(loaded, cmd.Flags()); err != nil {
			return err
		}
		cfg = loaded
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/bayz/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// Flag names shared by the subcommands. Each one overrides the config field
// of the same meaning when set on the command line.
const (
	flagServer     = "server"
	flagListen     = "listen"
	flagPoll       = "poll"
	flagTick       = "tick"
	flagSampleRate = "sample-rate"
	flagGain       = "gain"
	flagAutoCommit = "auto-commit"
	flagSustain    = "sustain"
)

func addClientFlags(fs *pflag.FlagSet) {
	d := config.DefaultConfig()
	fs.String(flagServer, d.ServerURL, "compose server URL")
	fs.Duration(flagPoll, d.PollInterval(), "server poll interval")
	fs.Duration(flagTick, d.TickPeriod(), "scheduler tick period")
	fs.Int(flagSampleRate, d.SampleRate, "output sample rate")
	fs.Float64(flagGain, d.MasterGain, "master gain")
	fs.Float64(flagSustain, d.Voice.Sustain, "note sustain level")
}

func addServerFlags(fs *pflag.FlagSet) {
	d := config.DefaultConfig()
	fs.String(flagListen, d.ListenAddr, "listen address")
	fs.Duration(flagAutoCommit, d.AutoCommit(), "commit staged lines after this quiet period (0 disables)")
}

// overrideConfig copies every flag the user set onto c. Flags a command does
// not define are skipped.
func overrideConfig(c *config.Config, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		err = apply()
	}
	set(flagServer, func() error {
		v, e := fs.GetString(flagServer)
		c.ServerURL = v
		return e
	})
	set(flagListen, func() error {
		v, e := fs.GetString(flagListen)
		c.ListenAddr = v
		return e
	})
	set(flagPoll, func() error {
		v, e := fs.GetDuration(flagPoll)
		c.PollIntervalMs = millis(v)
		return e
	})
	set(flagTick, func() error {
		v, e := fs.GetDuration(flagTick)
		c.TickPeriodMs = millis(v)
		return e
	})
	set(flagSampleRate, func() error {
		v, e := fs.GetInt(flagSampleRate)
		c.SampleRate = v
		return e
	})
	set(flagGain, func() error {
		v, e := fs.GetFloat64(flagGain)
		c.MasterGain = v
		return e
	})
	set(flagSustain, func() error {
		v, e := fs.GetFloat64(flagSustain)
		c.Voice.Sustain = v
		return e
	})
	set(flagAutoCommit, func() error {
		v, e := fs.GetDuration(flagAutoCommit)
		c.AutoCommitMs = millis(v)
		return e
	})
	return err
}

func millis(d time.Duration) int {
	return int(d / time.Millisecond)
}
