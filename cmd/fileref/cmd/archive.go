// Copyright © 2018 One Concern

package cmd

import (
	"bytes"
	"io"
	"os"

	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Commands to manage archives of filerefs",
	Long: `Commands to create, extract and list archives.

An archive is a JSON array of filerefs, with blobs kept in the content store.
A bundle is a tar stream holding the archive and its blobs, optionally zstd compressed.`,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

// readArchive reads a plain archive or a bundle. The loader of a bundle
// serves its own blobs.
func readArchive(cmd *cobra.Command, input string) (*archive.Archive, content.Loader, func(), error) {
	var (
		b   []byte
		err error
	)
	if input == "" || input == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		a, err := archive.Decode(b)
		if err != nil {
			return nil, nil, nil, err
		}
		store, closer, err := openStore()
		if err != nil {
			return nil, nil, nil, err
		}
		return a, store, func() { _ = closer.Close() }, nil
	}

	a, blobs, err := archive.ReadBundle(commandContext(cmd), bytes.NewReader(b), content.Logger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return a, blobs, func() {}, nil
}
