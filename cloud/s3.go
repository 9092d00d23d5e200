package cloud

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/result"
)

// ObjectGetter is the subset of the S3 client used by S3ArtifactStore.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ArtifactStore reads result artifacts from S3.
type S3ArtifactStore struct {
	api ObjectGetter
}

var _ result.ArtifactStore = (*S3ArtifactStore)(nil)

// NewS3ArtifactStore wraps an S3 client.
func NewS3ArtifactStore(api ObjectGetter) (*S3ArtifactStore, error) {
	if api == nil {
		return nil, ErrClientRequired
	}
	return &S3ArtifactStore{api: api}, nil
}

// Fetch reads the whole object at ref.
// An absent key is reported as *core.MissingArtifactError so the caller can
// wait for eventual visibility.
func (s *S3ArtifactStore) Fetch(ctx context.Context, ref core.ObjectRef) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		var notFound *s3types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, &core.MissingArtifactError{Location: ref, Err: err}
		}
		return nil, classify("get object "+ref.URI(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, core.Transient("read object "+ref.URI(), err)
	}
	return data, nil
}
