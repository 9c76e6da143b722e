package commands

import (
	"github.com/spf13/cobra"

	"github.com/guri-assistant/guri/pkg/cli"
)

var settingsFlags struct {
	output string
	filter string
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the persisted settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := loadSettings()
		if err != nil {
			return err
		}
		return cli.Print(store.Get(), cli.OutputOptions{
			Format: cli.OutputFormat(settingsFlags.output),
			Filter: settingsFlags.filter,
		})
	},
}

func init() {
	settingsCmd.Flags().StringVarP(&settingsFlags.output, "output", "o", "yaml", "output format (yaml, json, raw)")
	settingsCmd.Flags().StringVar(&settingsFlags.filter, "filter", "", "jq expression applied to the output")
	rootCmd.AddCommand(settingsCmd)
}
