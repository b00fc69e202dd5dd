package cmd

import (
	"io"
	"strings"

	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/metrics"
	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/walk"
)

var errUnknownOrder = status.ErrInvalidArgument.Extend("unknown walk order")

// openStore opens the content store named by the settings. Comma separated
// URLs mirror the first store to the others.
func openStore() (*content.BlobStore, io.Closer, error) {
	algo, err := settings.Algorithm()
	if err != nil {
		return nil, nil, err
	}
	backend, closer, err := content.OpenMirror(strings.Split(settings.Store, ",")...)
	if err != nil {
		return nil, nil, err
	}
	backend = storage.Instrument(logger, metrics.NewStorage(nil), backend)

	store, err := content.New(backend,
		content.Hash(algo),
		content.Logger(logger),
		content.MaxInFlight(settings.MaxInFlight),
		content.CacheSize(settings.CacheSize),
	)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return store, closer, nil
}

// filerefOptions from the settings
func filerefOptions() ([]fileref.Option, error) {
	algo, err := settings.Algorithm()
	if err != nil {
		return nil, err
	}
	chunk, err := settings.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}
	threshold, err := settings.SmallFileThresholdBytes()
	if err != nil {
		return nil, err
	}
	return []fileref.Option{
		fileref.Algorithm(algo),
		fileref.ChunkSize(chunk),
		fileref.SmallFileThreshold(threshold),
	}, nil
}

// creatorOptions from the settings and flags
func creatorOptions() ([]archive.CreatorOption, error) {
	algo, err := settings.Algorithm()
	if err != nil {
		return nil, err
	}
	chunk, err := settings.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}
	threshold, err := settings.SmallFileThresholdBytes()
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(params.archive.order)
	if err != nil {
		return nil, err
	}
	return []archive.CreatorOption{
		archive.Hash(algo),
		archive.ChunkSize(chunk),
		archive.SmallFileThreshold(threshold),
		archive.MaxInFlight(settings.MaxInFlight),
		archive.Order(order),
		archive.IgnoreFailedRead(params.archive.ignoreFailedRead),
		archive.Namespace(params.archive.namespace),
		archive.CreatorLogger(logger),
	}, nil
}

func parseOrder(s string) (walk.Order, error) {
	for _, o := range []walk.Order{walk.PreOrder, walk.PostOrder, walk.BreadthFirst} {
		if o.String() == s {
			return o, nil
		}
	}
	return walk.PreOrder, errUnknownOrder.Wrapf("%q", s)
}
