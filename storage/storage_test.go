package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3 { return &mockS3{objects: map[string][]byte{}} }

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		_, _ = io.Copy(io.Discard, in.Body)
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func exercise(t *testing.T, fs FileStore) {
	t.Helper()
	ctx := context.Background()

	ok, err := fs.Exists(ctx, "idx/docs.vix")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = fs.Read(ctx, "idx/docs.vix")
	require.ErrorIs(t, err, os.ErrNotExist)

	w, err := fs.Write(ctx, "idx/docs.vix")
	require.NoError(t, err)
	_, err = w.Write([]byte("snapshot"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ok, err = fs.Exists(ctx, "idx/docs.vix")
	require.NoError(t, err)
	require.True(t, ok)

	r, err := fs.Read(ctx, "idx/docs.vix")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "snapshot", string(data))

	require.NoError(t, fs.Delete(ctx, "idx/docs.vix"))
	require.NoError(t, fs.Delete(ctx, "idx/docs.vix"))
	ok, err = fs.Exists(ctx, "idx/docs.vix")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocal(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	exercise(t, fs)
}

func TestLocal_WriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	w, err := fs.Write(ctx, "a.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	ok, err := fs.Exists(ctx, "a.bin")
	require.NoError(t, err)
	require.False(t, ok, "target visible before Close")
	require.NoError(t, w.Close())
	ok, err = fs.Exists(ctx, "a.bin")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestS3Store(t *testing.T) {
	mock := newMockS3()
	exercise(t, NewS3(mock, "bucket", "/snapshots/"))

	w, err := NewS3(mock, "bucket", "snapshots").Write(context.Background(), "x")
	require.NoError(t, err)
	_, _ = w.Write([]byte("data"))
	require.NoError(t, w.Close())
	_, ok := mock.objects["snapshots/x"]
	require.True(t, ok, "object stored under prefix")
}

func TestS3Store_UploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	w, err := NewS3(mock, "bucket", "").Write(context.Background(), "x")
	require.NoError(t, err)
	_, _ = w.Write([]byte("data"))
	require.ErrorContains(t, w.Close(), "boom")
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	mock := newMockS3()
	for name, fs := range map[string]FileStore{"local": local, "s3": NewS3(mock, "bucket", "")} {
		t.Run(name, func(t *testing.T) {
			w, err := fs.Write(ctx, "aborted.bin")
			require.NoError(t, err)
			_, err = w.Write([]byte("partial"))
			require.NoError(t, err)
			require.NoError(t, Abort(w))
			ok, err := fs.Exists(ctx, "aborted.bin")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestNew(t *testing.T) {
	fs, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &Local{}, fs)

	_, err = New(Config{Kind: "s3"})
	require.Error(t, err)

	fs, err = New(Config{Kind: "s3", Bucket: "b", Region: "us-east-1", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)
	require.IsType(t, &S3Store{}, fs)

	_, err = New(Config{Kind: "ftp"})
	require.Error(t, err)
}
