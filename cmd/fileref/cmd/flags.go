// Copyright © 2018 One Concern

package cmd

import (
	"strings"

	"github.com/oneconcern/fileref/pkg/config"
	"github.com/oneconcern/fileref/pkg/dlogger"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		config  string
		cpuProf string
		memProf string
	}
	archive struct {
		input            string
		output           string
		destination      string
		bundle           bool
		zstd             bool
		overwrite        bool
		verbose          bool
		long             bool
		ignoreFailedRead bool
		noVerify         bool
		order            string
		namespace        string
	}
	stage struct {
		tag        string
		pattern    string
		contentIDs bool
		pageSize   int
	}
	config struct {
		output string
	}
}

var params = flagsT{}

// boundKeys are the persistent flags overriding config settings of the same name
var boundKeys = []string{
	config.KeyLogLevel,
	config.KeyStore,
	config.KeyHash,
	config.KeyChunkSize,
	config.KeySmallFileThreshold,
	config.KeyMaxInFlight,
}

// defaults shown by the flags come from the config package, values are read through viper
var defaults = config.Default()

func addConfigFileFlag(cmd *cobra.Command) string {
	c := "config"
	cmd.PersistentFlags().StringVar(&params.root.config, c, "", "Config file, instead of fileref.yaml in the search paths")
	return c
}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(config.KeyLogLevel, defaults.LogLevel, "Log level, one of "+strings.Join(dlogger.Levels(), ", "))
	return config.KeyLogLevel
}

func addStoreFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(config.KeyStore, defaults.Store,
		"Content store URL: mem://, file://<dir>, badger://<dir>, badger+mem:// or s3://<bucket>/<prefix>")
	return config.KeyStore
}

func addHashFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(config.KeyHash, defaults.Hash, "Digest algorithm: sha1, sha256, blake2b or blake3")
	return config.KeyHash
}

func addChunkSizeFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(config.KeyChunkSize, defaults.ChunkSize, "Maximum blob size, e.g. 64k or 4MiB. 0 makes one blob per data region")
	return config.KeyChunkSize
}

func addSmallFileThresholdFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(config.KeySmallFileThreshold, defaults.SmallFileThreshold, "Files up to this size are kept inline. 0 disables inline content")
	return config.KeySmallFileThreshold
}

func addMaxInFlightFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Int(config.KeyMaxInFlight, defaults.MaxInFlight, "Maximum number of concurrent blob requests")
	return config.KeyMaxInFlight
}

func addCPUProfFlag(cmd *cobra.Command) string {
	c := "cpu-profile"
	cmd.PersistentFlags().StringVar(&params.root.cpuProf, c, "", "Write a CPU profile to this file")
	return c
}

func addMemProfFlag(cmd *cobra.Command) string {
	c := "mem-profile"
	cmd.PersistentFlags().StringVar(&params.root.memProf, c, "", "Write heap and allocation profiles with this prefix when done")
	return c
}

func addInputFlag(cmd *cobra.Command) string {
	c := "input"
	cmd.Flags().StringVar(&params.archive.input, c, "", "Archive to read")
	return c
}

func addOutputFlag(cmd *cobra.Command) string {
	c := "output"
	cmd.Flags().StringVar(&params.archive.output, c, "", "Archive to write, standard output when empty")
	return c
}

func addDestinationFlag(cmd *cobra.Command) string {
	c := "destination"
	cmd.Flags().StringVar(&params.archive.destination, c, "", "Directory to extract to")
	return c
}

func addBundleFlag(cmd *cobra.Command) string {
	c := "bundle"
	cmd.Flags().BoolVar(&params.archive.bundle, c, false, "Write a self contained tar bundle with the blobs, instead of using the store")
	return c
}

func addZstdFlag(cmd *cobra.Command) string {
	c := "zstd"
	cmd.Flags().BoolVar(&params.archive.zstd, c, false, "Compress the bundle with zstd")
	return c
}

func addOverwriteFlag(cmd *cobra.Command) string {
	c := "overwrite"
	cmd.Flags().BoolVar(&params.archive.overwrite, c, false, "Replace existing files")
	return c
}

func addVerboseFlag(cmd *cobra.Command) string {
	c := "verbose"
	cmd.Flags().BoolVarP(&params.archive.verbose, c, "v", false, "Print every extracted path")
	return c
}

func addLongFlag(cmd *cobra.Command) string {
	c := "long"
	cmd.Flags().BoolVarP(&params.archive.long, c, "l", false, "Long listing, like ls -l")
	return c
}

func addIgnoreFailedReadFlag(cmd *cobra.Command) string {
	c := "ignore-failed-read"
	cmd.Flags().BoolVar(&params.archive.ignoreFailedRead, c, false, "Skip unreadable files instead of failing")
	return c
}

func addNoVerifyFlag(cmd *cobra.Command) string {
	c := "no-verify"
	cmd.Flags().BoolVar(&params.archive.noVerify, c, false, "Do not check blobs against their content id")
	return c
}

func addOrderFlag(cmd *cobra.Command) string {
	c := "order"
	cmd.Flags().StringVar(&params.archive.order, c, "pre-order", "Walk order: pre-order, post-order or breadth-first")
	return c
}

func addNamespaceFlag(cmd *cobra.Command) string {
	c := "namespace"
	cmd.Flags().StringVar(&params.archive.namespace, c, "", "Namespace prefixed to symbolic link targets")
	return c
}

func addTagFlag(cmd *cobra.Command) string {
	c := "tag"
	cmd.Flags().StringVar(&params.stage.tag, c, "", "Tag grouping the staged files")
	return c
}

func addPatternFlag(cmd *cobra.Command) string {
	c := "pattern"
	cmd.Flags().StringVar(&params.stage.pattern, c, "", "Only list paths matching this glob")
	return c
}

func addContentIDsFlag(cmd *cobra.Command) string {
	c := "content-ids"
	cmd.Flags().BoolVar(&params.stage.contentIDs, c, false, "Store the listed filerefs and print their content ids")
	return c
}

func addPageSizeFlag(cmd *cobra.Command) string {
	c := "page-size"
	cmd.Flags().IntVar(&params.stage.pageSize, c, 0, "Number of entries per page")
	return c
}

func addConfigOutputFlag(cmd *cobra.Command) string {
	c := "output"
	cmd.Flags().StringVar(&params.config.output, c, "", "File to write, standard output when empty")
	return c
}

func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}
}
