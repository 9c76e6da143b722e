package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guri-assistant/guri/pkg/cli"
	"github.com/guri-assistant/guri/pkg/settings"
)

var (
	verbose  bool
	baseHome string
)

var rootCmd = &cobra.Command{
	Use:   "guri",
	Short: "Voice companion that listens, talks back and remembers",
	Long: `guri - a desktop voice companion.

It transcribes the microphone continuously, answers when called by
name, chimes in on chat mentions, occasionally comments on its own,
and keeps a searchable long-term memory of everything said.

State lives under ~/.guri:
  settings.yaml   persisted options
  memory/         long-term memory database
  guri.log        session log`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&baseHome, "home", "", "override the state directory (default ~/.guri)")
}

func loadPaths() (*cli.Paths, error) {
	if baseHome != "" {
		return &cli.Paths{HomeDir: baseHome}, nil
	}
	return cli.NewPaths()
}

func loadSettings() (*cli.Paths, *settings.Store, error) {
	paths, err := loadPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	store, err := settings.Open(paths.SettingsFile())
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}
	return paths, store, nil
}
