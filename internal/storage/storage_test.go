package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/domain"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestOptimize_PNGBecomesSmallerJPEG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(128, 128)))

	out, err := Optimize(buf.Bytes(), 70)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.Equal(t, int64(buf.Len()), out.OriginalSize)
	assert.Less(t, out.OptimizedSize, out.OriginalSize)
	assert.Less(t, out.Ratio(), 1.0)

	_, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestOptimize_KeepsSmallerOriginalJPEG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(64, 64), &jpeg.Options{Quality: 10}))

	out, err := Optimize(buf.Bytes(), 100)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out.Data)
	assert.InDelta(t, 1.0, out.Ratio(), 0)
}

func TestOptimize_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Optimize([]byte("definitely not an image"), 80)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestPhotoKey(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("8a1f6c1e-4c54-4a8b-9a2a-3f7d0f7f3a10")
	at := time.Date(2026, 5, 1, 13, 4, 5, 0, time.UTC)
	assert.Equal(t,
		"deliveries/42/pickup_front/20260501T130405-8a1f6c1e-4c54-4a8b-9a2a-3f7d0f7f3a10.jpg",
		PhotoKey(42, domain.PhotoPickupFront, id, at))
}

func TestDiskStore_Put(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewDiskStore(root, "http://files.local/photos")
	require.NoError(t, err)

	obj, err := s.Put(context.Background(), "deliveries/1/signature/a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/photos/deliveries/1/signature/a.jpg", obj.URL)
	assert.Equal(t, int64(4), obj.Size)

	got, err := os.ReadFile(filepath.Join(root, "deliveries", "1", "signature", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(got))
}

func TestDiskStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := NewDiskStore(t.TempDir(), "")
	require.NoError(t, err)
	for _, key := range []string{"../etc/passwd", "/abs/path", ""} {
		_, err := s.Put(context.Background(), key, []byte("x"), "")
		assert.Error(t, err, key)
	}
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Store_Put(t *testing.T) {
	t.Parallel()

	fp := &fakePutter{}
	s := &S3Store{client: fp, bucket: "photos", baseURL: "https://photos.s3.us-east-2.amazonaws.com"}

	obj, err := s.Put(context.Background(), "deliveries/9/damage/x.jpg", []byte("abc"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.s3.us-east-2.amazonaws.com/deliveries/9/damage/x.jpg", obj.URL)
	assert.Equal(t, "photos", aws.ToString(fp.in.Bucket))
	assert.Equal(t, "deliveries/9/damage/x.jpg", aws.ToString(fp.in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(fp.in.ContentType))
	assert.Equal(t, []byte("abc"), fp.body)

	fp.err = errors.New("access denied")
	_, err = s.Put(context.Background(), "k", []byte("abc"), "")
	assert.ErrorContains(t, err, "access denied")
}

func TestDefaultS3BaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com", defaultS3BaseURL(S3Options{Bucket: "b", Region: "eu-west-1"}))
	assert.Equal(t, "http://minio:9000/b", defaultS3BaseURL(S3Options{Bucket: "b", Endpoint: "http://minio:9000"}))
}
