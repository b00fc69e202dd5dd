package cmd

import (
	"bytes"

	"github.com/oneconcern/fileref/pkg/config"
	"github.com/spf13/cobra"
)

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage a config",
	Long: `Commands to manage the fileref config.

The config holds the settings shared by most commands, which do not change across runs.`,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a config",
	Long: `Generate a config from the current settings.

Save it as $HOME/.fileref/fileref.yaml, or point $FILEREF_CONFIG at it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var buf bytes.Buffer
		if err := config.Generate(&buf, settings); err != nil {
			wrapFatalln("serialize config to yaml", err)
			return
		}
		if err := writeOutput(cmd, params.config.output, buf.Bytes()); err != nil {
			wrapFatalln("write config file", err)
			return
		}
	},
}

func init() {
	addConfigOutputFlag(configGenerateCmd)
	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}
