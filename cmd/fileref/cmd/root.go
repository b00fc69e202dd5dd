// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/oneconcern/fileref/internal/prof"
	"github.com/oneconcern/fileref/pkg/config"
	"github.com/oneconcern/fileref/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fileref",
	Short: "fileref describes files as content addressed references",
	Long: `fileref describes files, directories and symbolic links as JSON references.

Regular files are split into blobs addressed by their digest. Blobs are kept
in a content store, next to archives of references, or mapped in memory by a
staging cache.

Settings are read from fileref.yaml (in ., $HOME/.fileref or /etc/fileref, or
the file named by $FILEREF_CONFIG), then from FILEREF_* environment variables,
then from flags.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := initConfig(cmd.Root()); err != nil {
			wrapFatalln("loading config", err)
			return
		}
		if params.root.cpuProf != "" {
			stop, err := prof.CPU(params.root.cpuProf)
			if err != nil {
				wrapFatalln("starting cpu profile", err)
				return
			}
			stopProfile = stop
		}
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			if err := stopProfile(); err != nil {
				logger.Warn("writing cpu profile", zap.Error(err))
			}
			stopProfile = nil
		}
		if params.root.memProf != "" {
			if err := prof.Heap(params.root.memProf); err != nil {
				logger.Warn("writing memory profile", zap.Error(err))
			}
		}
	},
}

var (
	settings    *config.Config
	logger      = zap.NewNop()
	stopProfile func() error
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	addConfigFileFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addStoreFlag(rootCmd)
	addHashFlag(rootCmd)
	addChunkSizeFlag(rootCmd)
	addSmallFileThresholdFlag(rootCmd)
	addMaxInFlightFlag(rootCmd)
	addCPUProfFlag(rootCmd)
	addMemProfFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set, with the persistent flags of root on top.
func initConfig(root *cobra.Command) error {
	v := viper.New()
	explicit := params.root.config
	if explicit == "" {
		explicit = os.Getenv(config.EnvConfig)
	}
	config.Setup(v, explicit)
	for _, key := range boundKeys {
		if err := v.BindPFlag(key, root.PersistentFlags().Lookup(key)); err != nil {
			return err
		}
	}

	c, used, err := config.Load(v)
	if err != nil {
		return err
	}
	l, err := dlogger.GetLogger(c.LogLevel)
	if err != nil {
		return err
	}
	settings, logger = c, l
	if used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
