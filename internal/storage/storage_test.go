package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3_PutGet(t *testing.T) {
	api := newFakeS3()
	s := NewWithS3(api, "archive", "/mail/")
	ctx := context.Background()

	require.True(t, s.Enabled())
	require.NoError(t, s.Put(ctx, "campaigns/2026/03/c1.html", "text/html; charset=utf-8", []byte("<p>x</p>")))

	assert.Contains(t, api.objects, "archive/mail/campaigns/2026/03/c1.html")
	assert.Equal(t, "text/html; charset=utf-8", api.types["archive/mail/campaigns/2026/03/c1.html"])

	data, err := s.Get(ctx, "campaigns/2026/03/c1.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", string(data))

	_, err = s.Get(ctx, "campaigns/missing.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_PutGet(t *testing.T) {
	s, err := New(context.Background(), config.ArchiveConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "campaigns/2026/03/c1.html", "text/html", []byte("hallo")))
	data, err := s.Get(ctx, "campaigns/2026/03/c1.html")
	require.NoError(t, err)
	assert.Equal(t, "hallo", string(data))

	_, err = s.Get(ctx, "campaigns/2026/03/none.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisabled(t *testing.T) {
	s, err := New(context.Background(), config.ArchiveConfig{})
	require.NoError(t, err)

	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.Put(context.Background(), "k", "text/plain", nil), ErrDisabled)

	var nilStorage *Storage
	assert.False(t, nilStorage.Enabled())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), config.ArchiveConfig{Type: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.ArchiveConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestCheckKey(t *testing.T) {
	s := NewWithS3(newFakeS3(), "b", "")
	for _, key := range []string{"", "/abs", "../up", "a/../../b", "a//b"} {
		err := s.Put(context.Background(), key, "text/plain", nil)
		assert.True(t, errors.Is(err, ErrBadKey), key)
	}
}

func TestCampaignKey(t *testing.T) {
	at := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "campaigns/2026/03/c1.html", CampaignKey("c1", at))
}
