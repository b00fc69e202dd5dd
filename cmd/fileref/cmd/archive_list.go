// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/spf13/cobra"
)

var archiveListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the content of an archive",
	Long:    "List the content of an archive or a bundle, one entry per line",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, _, done, err := readArchive(cmd, params.archive.input)
		if err != nil {
			wrapFatalln("read archive", err)
			return
		}
		defer done()

		out := cmd.OutOrStdout()
		for i, line := range archive.List(a, params.archive.long) {
			switch a.Entries[i].Kind() {
			case fileref.Directory:
				line = color.BlueString(line)
			case fileref.Symlink:
				line = color.CyanString(line)
			}
			fmt.Fprintln(out, line)
		}
	},
}

func init() {
	addInputFlag(archiveListCmd)
	addLongFlag(archiveListCmd)
	archiveCmd.AddCommand(archiveListCmd)
}
