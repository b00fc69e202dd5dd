package sthree

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/storage/status"
)

func ignoreNotExists(err error) error {
	if errors.Is(err, status.ErrNotExists) {
		return nil
	}
	return err
}

// classify maps S3 failures to storage sentinels, by error code first and
// by HTTP status otherwise.
// See https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
func classify(err error) error {
	if err == nil {
		return nil
	}
	var reqErr awserr.RequestFailure
	if !errors.As(err, &reqErr) {
		return err
	}

	switch reqErr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		// HEAD requests and minio answer NotFound
		return status.ErrNotExists.Wrap(err)
	case s3.ErrCodeNoSuchBucket, "InvalidBucketName":
		return status.ErrInvalidResource.Wrap(err)
	case "PreconditionFailed":
		return status.ErrExists.Wrap(err)
	}

	switch code := reqErr.StatusCode(); {
	case code == 401:
		return status.ErrUnauthorized.Wrap(err)
	case code == 403:
		return status.ErrForbidden.Wrap(err)
	case code == 404:
		return status.ErrNotExists.Wrap(err)
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}
