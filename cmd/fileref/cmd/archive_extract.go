// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/spf13/cobra"
)

var archiveExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract an archive",
	Long: `Extract an archive or a bundle to a directory.

Existing files are kept, and reported as an error, unless --overwrite is set.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, loader, done, err := readArchive(cmd, params.archive.input)
		if err != nil {
			wrapFatalln("read archive", err)
			return
		}
		defer done()

		opts := []archive.ExtractorOption{
			archive.Loader(loader),
			archive.Overwrite(params.archive.overwrite),
			archive.VerifyDigests(!params.archive.noVerify),
			archive.ExtractMaxInFlight(settings.MaxInFlight),
			archive.ExtractorLogger(logger),
		}
		if params.archive.verbose {
			out := cmd.OutOrStdout()
			opts = append(opts, archive.Trace(func(f *fileref.Fileref) {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("x"), f.Path)
			}))
		}
		if err := archive.NewExtractor(opts...).Extract(commandContext(cmd), a, params.archive.destination); err != nil {
			wrapFatalln("extract archive", err)
			return
		}
	},
}

func init() {
	requireFlags(archiveExtractCmd, addDestinationFlag(archiveExtractCmd))
	addInputFlag(archiveExtractCmd)
	addOverwriteFlag(archiveExtractCmd)
	addVerboseFlag(archiveExtractCmd)
	addNoVerifyFlag(archiveExtractCmd)
	archiveCmd.AddCommand(archiveExtractCmd)
}
