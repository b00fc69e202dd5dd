package content

import (
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/storage/bdgr"
	"github.com/oneconcern/fileref/pkg/storage/localfs"
	"github.com/oneconcern/fileref/pkg/storage/sthree"
	"github.com/oneconcern/fileref/pkg/storage/status"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend resolves a storage backend from its URL:
//
//	mem://                     in-memory file system
//	file:///path, /path, path  directory on the local file system
//	badger:///path             embedded badger database
//	badger+mem://              in-memory badger database
//	s3://bucket[/prefix]       S3 bucket, configured from the AWS environment
//
// The returned closer must be called once the store is no longer used.
func OpenBackend(rawURL string) (storage.Store, io.Closer, error) {
	if rawURL == "" || rawURL == "mem://" {
		return localfs.NewMemory(), nopCloser{}, nil
	}
	if !strings.Contains(rawURL, "://") {
		s, err := localfs.NewDir(rawURL)
		return s, nopCloser{}, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, status.ErrInvalidResource.Wrap(err)
	}

	switch u.Scheme {
	case "mem":
		return localfs.NewMemory(), nopCloser{}, nil
	case "file":
		s, err := localfs.NewDir(u.Host + u.Path)
		return s, nopCloser{}, err
	case "badger":
		s, err := bdgr.New(u.Host + u.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "badger+mem":
		s, err := bdgr.New("", bdgr.InMemory(true))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "s3":
		opts := []sthree.Option{
			sthree.Prefix(u.Path),
			sthree.AWSConfig(aws.NewConfig().WithRegion(u.Query().Get("region"))),
		}
		if endpoint := u.Query().Get("endpoint"); endpoint != "" {
			opts = append(opts, sthree.AWSConfig(aws.NewConfig().
				WithRegion(u.Query().Get("region")).
				WithEndpoint(endpoint).
				WithS3ForcePathStyle(true)))
		}
		s, err := sthree.New(sthree.Bucket(u.Host), opts...)
		return s, nopCloser{}, err
	default:
		return nil, nil, status.ErrUnsupportedBackend.Wrapf("scheme %q", u.Scheme)
	}
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, closer := range c {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenMirror opens each backend URL. Writes go to the first backend and are
// replicated to the others, whose failures are tolerated.
func OpenMirror(rawURLs ...string) (storage.Store, io.Closer, error) {
	if len(rawURLs) == 0 {
		return nil, nil, status.ErrInvalidResource.Wrapf("no backend")
	}
	var (
		opened   closers
		primary  storage.Store
		replicas []storage.MultiStoreUnit
	)
	for i, rawURL := range rawURLs {
		s, closer, err := OpenBackend(strings.TrimSpace(rawURL))
		if err != nil {
			_ = opened.Close()
			return nil, nil, err
		}
		opened = append(opened, closer)
		if i == 0 {
			primary = s
			continue
		}
		replicas = append(replicas, storage.MultiStoreUnit{Store: s, TolerateFailure: true})
	}
	if len(replicas) == 0 {
		return primary, opened, nil
	}
	return storage.Mirror(primary, replicas...), opened, nil
}
