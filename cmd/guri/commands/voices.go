package commands

import (
	"github.com/spf13/cobra"

	"github.com/guri-assistant/guri/pkg/cli"
	"github.com/guri-assistant/guri/pkg/speech"
)

var voicesFlags struct {
	bridgeURL string
	remoteURL string
	output    string
	filter    string
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voices offered by the synthesis engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		mux := speech.NewMux()
		mux.Register("local_bridge", speech.NewBridge(voicesFlags.bridgeURL))
		if voicesFlags.remoteURL != "" {
			mux.Register("primary", speech.NewRemote(voicesFlags.remoteURL))
		}
		return cli.Print(mux.Voices(cmd.Context()), cli.OutputOptions{
			Format: cli.OutputFormat(voicesFlags.output),
			Filter: voicesFlags.filter,
		})
	},
}

func init() {
	voicesCmd.Flags().StringVar(&voicesFlags.bridgeURL, "bridge-url", "http://127.0.0.1:50021", "local synthesis engine")
	voicesCmd.Flags().StringVar(&voicesFlags.remoteURL, "tts-url", "", "large-model synthesis server")
	voicesCmd.Flags().StringVarP(&voicesFlags.output, "output", "o", "yaml", "output format (yaml, json, raw)")
	voicesCmd.Flags().StringVar(&voicesFlags.filter, "filter", "", "jq expression applied to the output")
	rootCmd.AddCommand(voicesCmd)
}
