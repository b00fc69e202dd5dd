// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/oneconcern/fileref/pkg/mmcache"
	"github.com/oneconcern/fileref/pkg/stage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Commands to stage files in memory",
	Long: `Commands to map files in memory under a tag and serve their blobs.

Staged files only live as long as the process: these commands map the given
paths, report on them, then unmap them. Mapping is refused unless the node
is designated.`,
}

// newStager maps paths under the tag flag
func newStager(cmd *cobra.Command, paths []string) (*stage.Stager, func(), error) {
	interval, err := settings.ValidateIntervalDuration()
	if err != nil {
		return nil, nil, err
	}
	algo, err := settings.Algorithm()
	if err != nil {
		return nil, nil, err
	}
	chunk, err := settings.ChunkSizeBytes()
	if err != nil {
		return nil, nil, err
	}
	store, closer, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	cache := mmcache.New(
		mmcache.Designated(settings.Designated),
		mmcache.ValidateInterval(interval),
		mmcache.Hash(algo),
		mmcache.ChunkSize(chunk),
		mmcache.Logger(logger),
	)
	s := stage.New(cache, stage.Store(store), stage.Logger(logger))
	done := func() {
		_ = cache.Close()
		_ = closer.Close()
	}
	if _, err := s.Map(commandContext(cmd), params.stage.tag, paths...); err != nil {
		done()
		return nil, nil, err
	}
	return s, done, nil
}

var stageMapCmd = &cobra.Command{
	Use:   "map <path>...",
	Short: "Map files and report the cache usage",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, done, err := newStager(cmd, args)
		if err != nil {
			wrapFatalln("stage files", err)
			return
		}
		defer done()

		var files, blobs int
		err = s.List(commandContext(cmd), params.stage.tag, stage.ListOptions{}, func(p stage.Page) error {
			files += len(p.Filerefs)
			for _, f := range p.Filerefs {
				blobs += len(f.Blobvec)
			}
			return nil
		})
		if err != nil {
			wrapFatalln("list staged files", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d files, %d blobs\n", color.GreenString(params.stage.tag), files, blobs)
		logger.Debug("staged", zap.String("tag", params.stage.tag), zap.Int("files", files))
	},
}

var stageListCmd = &cobra.Command{
	Use:   "list <path>...",
	Short: "Map files and list them page by page",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, done, err := newStager(cmd, args)
		if err != nil {
			wrapFatalln("stage files", err)
			return
		}
		defer done()

		out := cmd.OutOrStdout()
		opts := stage.ListOptions{
			Pattern:    params.stage.pattern,
			ContentIDs: params.stage.contentIDs,
			PageSize:   params.stage.pageSize,
		}
		page := 0
		err = s.List(commandContext(cmd), params.stage.tag, opts, func(p stage.Page) error {
			if p.EOF {
				return nil
			}
			page++
			fmt.Fprintln(out, color.HiBlackString("page %d", page))
			for _, id := range p.IDs {
				fmt.Fprintln(out, id)
			}
			for _, f := range p.Filerefs {
				fmt.Fprintln(out, f.Format(true))
			}
			return nil
		})
		if err != nil {
			wrapFatalln("list staged files", err)
			return
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{stageMapCmd, stageListCmd} {
		requireFlags(c, addTagFlag(c))
		stageCmd.AddCommand(c)
	}
	addPatternFlag(stageListCmd)
	addContentIDsFlag(stageListCmd)
	addPageSizeFlag(stageListCmd)
	rootCmd.AddCommand(stageCmd)
}
