package cloud

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	objects map[string]string
	err     error
}

func (f *fakeGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3ArtifactStore_Fetch(t *testing.T) {
	api := &fakeGetter{objects: map[string]string{
		"results/output/inv-001/job/0/custom_output/0/result.json": `{"ok":true}`,
	}}
	store, err := NewS3ArtifactStore(api)
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), core.ObjectRef{Bucket: "results", Key: "output/inv-001/job/0/custom_output/0/result.json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestS3ArtifactStore_MissingKey(t *testing.T) {
	store, err := NewS3ArtifactStore(&fakeGetter{})
	require.NoError(t, err)

	ref := core.ObjectRef{Bucket: "results", Key: "missing.json"}
	_, err = store.Fetch(context.Background(), ref)

	var missing *core.MissingArtifactError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, ref, missing.Location)
	assert.True(t, core.IsRetryable(err))
}

func TestS3ArtifactStore_ArchivedObjectIsPermanent(t *testing.T) {
	store, err := NewS3ArtifactStore(&fakeGetter{err: &s3types.InvalidObjectState{}})
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), core.ObjectRef{Bucket: "results", Key: "archived.json"})
	assert.True(t, core.IsPermanent(err))
}
