package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
)

// mockObjectAPI keeps objects in a map and mimics MinIO list/remove behavior.
type mockObjectAPI struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	removeErr map[string]error
	listErr   error
	statErrs  []error
	stats     int
}

func newMockObjectAPI() *mockObjectAPI {
	return &mockObjectAPI{objects: map[string][]byte{}, types: map[string]string{}, removeErr: map[string]error{}}
}

func (m *mockObjectAPI) PutObject(_ context.Context, _ string, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putErr != nil {
		return minio.UploadInfo{}, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = opts.ContentType
	return minio.UploadInfo{Key: key, Size: size}, nil
}

func (m *mockObjectAPI) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan minio.ObjectInfo, len(m.objects)+1)
	if m.listErr != nil {
		ch <- minio.ObjectInfo{Err: m.listErr}
		close(ch)
		return ch
	}
	for key := range m.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			ch <- minio.ObjectInfo{Key: key}
		}
	}
	close(ch)
	return ch
}

func (m *mockObjectAPI) RemoveObject(_ context.Context, _ string, key string, _ minio.RemoveObjectOptions) error {
	if err := m.removeErr[key]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	delete(m.objects, key)
	return nil
}

// StatObject returns queued statErrs first, then the stored object's info.
func (m *mockObjectAPI) StatObject(_ context.Context, _ string, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats++
	if len(m.statErrs) > 0 {
		err := m.statErrs[0]
		m.statErrs = m.statErrs[1:]
		return minio.ObjectInfo{}, err
	}
	data, ok := m.objects[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

// GetObject cannot build a *minio.Object without a live client.
func (m *mockObjectAPI) GetObject(_ context.Context, _ string, key string, _ minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("get object not supported by mock: " + key)
}

func TestMinioStore_PutAndPublicURL(t *testing.T) {
	api := newMockObjectAPI()
	s := newMinioStore(api, "wedding-photos", "https://cdn.example.test/wedding-photos/")

	path, err := s.Put(context.Background(), "1718-abc.jpg", []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if path != "1718-abc.jpg" {
		t.Errorf("got path %q, want 1718-abc.jpg", path)
	}
	if got := api.types[path]; got != "image/jpeg" {
		t.Errorf("got content type %q, want image/jpeg", got)
	}
	if got, want := s.PublicURL(path), "https://cdn.example.test/wedding-photos/1718-abc.jpg"; got != want {
		t.Errorf("got url %q, want %q", got, want)
	}
}

func TestMinioStore_PutDefaultsContentType(t *testing.T) {
	api := newMockObjectAPI()
	s := newMinioStore(api, "b", "http://localhost:9000/b")

	if _, err := s.Put(context.Background(), "k", []byte("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := api.types["k"]; got != "application/octet-stream" {
		t.Errorf("got content type %q, want application/octet-stream", got)
	}
}

func TestMinioStore_PutError(t *testing.T) {
	api := newMockObjectAPI()
	api.putErr = errors.New("bucket unavailable")
	s := newMinioStore(api, "b", "http://localhost:9000/b")

	if _, err := s.Put(context.Background(), "k", []byte("x"), "image/jpeg"); !errors.Is(err, api.putErr) {
		t.Errorf("got %v, want wrapped put error", err)
	}
}

func TestMinioStore_ListWithPrefix(t *testing.T) {
	api := newMockObjectAPI()
	s := newMinioStore(api, "b", "http://localhost:9000/b")
	ctx := context.Background()
	for _, k := range []string{"couple-1.jpg", "couple-2.jpg", "1718-abc.jpg"} {
		if _, err := s.Put(ctx, k, []byte("x"), "image/jpeg"); err != nil {
			t.Fatalf("put %q: %v", k, err)
		}
	}

	keys, err := s.List(ctx, "couple-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("got %d keys, want 2 (prefix filter should exclude guest photos): %v", len(keys), keys)
	}
}

func TestMinioStore_ListError(t *testing.T) {
	api := newMockObjectAPI()
	api.listErr = errors.New("access denied")
	s := newMinioStore(api, "b", "http://localhost:9000/b")

	if _, err := s.List(context.Background(), ""); !errors.Is(err, api.listErr) {
		t.Errorf("got %v, want wrapped list error", err)
	}
}

func TestMinioStore_RemoveSkipsMissing(t *testing.T) {
	api := newMockObjectAPI()
	s := newMinioStore(api, "b", "http://localhost:9000/b")
	ctx := context.Background()
	if _, err := s.Put(ctx, "a.jpg", []byte("x"), "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := s.Remove(ctx, "a.jpg", "never-existed.jpg"); err != nil {
		t.Errorf("got %v, want nil for missing keys", err)
	}
	if len(api.objects) != 0 {
		t.Errorf("got %d objects left, want 0", len(api.objects))
	}
}

func TestMinioStore_RemoveReportsFirstFailure(t *testing.T) {
	api := newMockObjectAPI()
	s := newMinioStore(api, "b", "http://localhost:9000/b")
	ctx := context.Background()
	for _, k := range []string{"a.jpg", "b.jpg"} {
		if _, err := s.Put(ctx, k, []byte("x"), "image/jpeg"); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	boom := errors.New("connection reset")
	api.removeErr["a.jpg"] = boom

	err := s.Remove(ctx, "a.jpg", "b.jpg")
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped remove error", err)
	}
	if _, ok := api.objects["b.jpg"]; ok {
		t.Error("b.jpg not removed after earlier failure")
	}
}

func TestMinioStore_OpenMissing(t *testing.T) {
	s := newMinioStore(newMockObjectAPI(), "b", "http://localhost:9000/b")

	if _, err := s.Open(context.Background(), "nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMinioStore_OpenRetriesAccessDenied(t *testing.T) {
	api := newMockObjectAPI()
	api.statErrs = []error{errors.New("Access Denied."), errors.New("Access Denied.")}
	s := newMinioStore(api, "b", "http://localhost:9000/b")

	_, err := s.Open(context.Background(), "missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after retries", err)
	}
	if api.stats != statRetries {
		t.Errorf("got %d stat calls, want %d", api.stats, statRetries)
	}
}

func TestMinioStore_OpenStatFailure(t *testing.T) {
	api := newMockObjectAPI()
	boom := errors.New("connection refused")
	api.statErrs = []error{boom}
	s := newMinioStore(api, "b", "http://localhost:9000/b")

	_, err := s.Open(context.Background(), "a.jpg")
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want wrapped stat error", err)
	}
	if api.stats != 1 {
		t.Errorf("got %d stat calls, want 1 (only Access Denied is retried)", api.stats)
	}
}
