// Copyright © 2018 One Concern

package cmd

import (
	"bytes"
	"io"
	"os"

	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiveCreateCmd = &cobra.Command{
	Use:   "create <path>...",
	Short: "Create an archive",
	Long: `Create an archive of files and directory trees.

Blobs are written to the configured store, or into the bundle with --bundle.
Directories are recorded relative to themselves, other files by their base name.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)
		opts, err := creatorOptions()
		if err != nil {
			wrapFatalln("invalid settings", err)
			return
		}

		var store content.Store
		if params.archive.bundle {
			store = content.NewMemory(content.Logger(logger))
		} else {
			s, closer, err := openStore()
			if err != nil {
				wrapFatalln("open store", err)
				return
			}
			defer closer.Close()
			store = s
		}

		a, err := archive.NewCreator(append(opts, archive.Store(store))...).Create(ctx, args...)
		if err != nil {
			wrapFatalln("create archive", err)
			return
		}

		var buf bytes.Buffer
		if params.archive.bundle {
			err = archive.WriteBundle(ctx, &buf, a, store, params.archive.zstd)
		} else {
			var b []byte
			b, err = archive.Encode(a)
			buf.Write(b)
		}
		if err != nil {
			wrapFatalln("write archive", err)
			return
		}
		if err := writeOutput(cmd, params.archive.output, buf.Bytes()); err != nil {
			wrapFatalln("write archive", err)
			return
		}
		logger.Info("archive created", zap.Int("entries", a.Len()), zap.Int("blobs", len(a.IDs())))
	},
}

func writeOutput(cmd *cobra.Command, output string, b []byte) error {
	var w io.Writer = cmd.OutOrStdout()
	if output != "" && output != "-" {
		return os.WriteFile(output, b, 0o644)
	}
	_, err := w.Write(b)
	return err
}

func init() {
	addOutputFlag(archiveCreateCmd)
	addBundleFlag(archiveCreateCmd)
	addZstdFlag(archiveCreateCmd)
	addIgnoreFailedReadFlag(archiveCreateCmd)
	addOrderFlag(archiveCreateCmd)
	addNamespaceFlag(archiveCreateCmd)
	archiveCmd.AddCommand(archiveCreateCmd)
}
